package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Admin asserts topics exist. Each topic is created at most once per
// process; an existing topic is not an error.
type Admin struct {
	adm               *kadm.Client
	partitions        int32
	replicationFactor int16

	mu       sync.Mutex
	asserted map[string]struct{}
}

func NewAdmin(client *kgo.Client, partitions int32, replicationFactor int16) *Admin {
	return &Admin{
		adm:               kadm.NewClient(client),
		partitions:        partitions,
		replicationFactor: replicationFactor,
		asserted:          make(map[string]struct{}),
	}
}

func (a *Admin) EnsureTopics(ctx context.Context, topics ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var missing []string
	for _, t := range topics {
		if _, ok := a.asserted[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	resps, err := a.adm.CreateTopics(ctx, a.partitions, a.replicationFactor, nil, missing...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
		a.asserted[r.Topic] = struct{}{}
	}
	return nil
}
