package messaging

import (
	"fmt"
	"strings"
	"sync"

	dErrors "surety/pkg/domain-errors"
)

type binding struct {
	queue   string
	pattern string
}

// Topology holds exchange declarations and queue bindings. Routing follows
// topic exchange rules: words are dot separated, "*" matches exactly one
// word and "#" matches zero or more.
type Topology struct {
	mu        sync.RWMutex
	exchanges map[string][]binding
}

func NewTopology() *Topology {
	return &Topology{exchanges: make(map[string][]binding)}
}

func (t *Topology) DeclareExchange(name string) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeValidation, "exchange name is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.exchanges[name]; !ok {
		t.exchanges[name] = nil
	}
	return nil
}

func (t *Topology) Bind(queue, exchange, pattern string) error {
	if queue == "" || pattern == "" {
		return dErrors.New(dErrors.CodeValidation, "queue and routing pattern are required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bindings, ok := t.exchanges[exchange]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("exchange %q is not declared", exchange))
	}
	for _, b := range bindings {
		if b.queue == queue && b.pattern == pattern {
			return nil
		}
	}
	t.exchanges[exchange] = append(bindings, binding{queue: queue, pattern: pattern})
	return nil
}

// Resolve returns the queues a publish to destination lands in. A
// destination that is not an exchange is a queue and resolves to itself.
func (t *Topology) Resolve(destination, routingKey string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bindings, ok := t.exchanges[destination]
	if !ok {
		return []string{destination}
	}
	var queues []string
	seen := make(map[string]struct{})
	for _, b := range bindings {
		if _, dup := seen[b.queue]; dup {
			continue
		}
		if matchTopic(b.pattern, routingKey) {
			queues = append(queues, b.queue)
			seen[b.queue] = struct{}{}
		}
	}
	return queues
}

func matchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}
