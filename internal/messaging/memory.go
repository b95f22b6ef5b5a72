package messaging

import (
	"context"
	"log/slog"
	"sync"

	"surety/internal/platform/metrics"
	dErrors "surety/pkg/domain-errors"
)

// MemoryQueueCapacity is how many messages a memory queue buffers.
const MemoryQueueCapacity = 256

// MemoryBus is an in-process Bus. Queues are created on first use and hold
// encoded envelopes so the same codec path runs as with Kafka.
//
// Publishing never blocks. A full queue with no consumer drops its oldest
// message; a full queue that is being consumed rejects the publish with
// CodeIntegration so the caller can retry.
type MemoryBus struct {
	mu        sync.RWMutex
	queues    map[string]chan []byte
	consumers map[string]int
	recMu     sync.Mutex
	published map[string][]Envelope
	topology  *Topology
	logger    *slog.Logger
	metrics   *metrics.Metrics
	closed    bool
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

func WithMemoryMetrics(m *metrics.Metrics) MemoryOption {
	return func(b *MemoryBus) { b.metrics = m }
}

// WithRecording keeps every published envelope for Published. Tests only;
// the record is never trimmed.
func WithRecording() MemoryOption {
	return func(b *MemoryBus) { b.published = make(map[string][]Envelope) }
}

func NewMemoryBus(logger *slog.Logger, opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		queues:    make(map[string]chan []byte),
		consumers: make(map[string]int),
		topology:  NewTopology(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBus) queue(name string) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queueLocked(name)
}

func (b *MemoryBus) queueLocked(name string) (chan []byte, error) {
	if b.closed {
		return nil, dErrors.New(dErrors.CodeIntegration, "bus is closed")
	}
	q, ok := b.queues[name]
	if !ok {
		q = make(chan []byte, MemoryQueueCapacity)
		b.queues[name] = q
	}
	return q, nil
}

func (b *MemoryBus) Publish(ctx context.Context, destination string, env Envelope, opts ...PublishOption) error {
	o := applyOptions(opts)
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	for _, name := range b.topology.Resolve(destination, o.routingKey) {
		if err := b.send(ctx, name, raw); err != nil {
			b.metrics.IncrementPublished(name, "error")
			return err
		}
		b.record(name, env)
		b.metrics.IncrementPublished(name, "ok")
	}
	return nil
}

func (b *MemoryBus) record(name string, env Envelope) {
	b.recMu.Lock()
	defer b.recMu.Unlock()
	if b.published != nil {
		b.published[name] = append(b.published[name], env)
	}
}

// send holds the read lock for the duration of the enqueue so Close cannot
// close the channel underneath it.
func (b *MemoryBus) send(ctx context.Context, name string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegration, "publish to "+name+" aborted")
	}
	if _, err := b.queue(name); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return dErrors.New(dErrors.CodeIntegration, "bus is closed")
	}
	q := b.queues[name]
	for {
		select {
		case q <- raw:
			return nil
		default:
		}
		if b.consumers[name] > 0 {
			return dErrors.New(dErrors.CodeIntegration, "queue "+name+" is full")
		}
		select {
		case <-q:
			b.metrics.IncrementPublished(name, "dropped")
			b.logger.DebugContext(ctx, "memory queue has no consumer, dropped oldest message",
				"destination", name,
			)
		default:
		}
	}
}

func (b *MemoryBus) attach(name string) (chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, err := b.queueLocked(name)
	if err != nil {
		return nil, err
	}
	b.consumers[name]++
	return q, nil
}

func (b *MemoryBus) detach(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers[name]--
}

func (b *MemoryBus) Consume(ctx context.Context, destination string, h Handler) error {
	q, err := b.attach(destination)
	if err != nil {
		return err
	}
	defer b.detach(destination)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-q:
			if !ok {
				return nil
			}
			deliver(ctx, b.logger, b.metrics, destination, raw, h)
		}
	}
}

func (b *MemoryBus) CreateExchange(_ context.Context, name string) error {
	return b.topology.DeclareExchange(name)
}

func (b *MemoryBus) BindQueue(_ context.Context, queue, exchange, pattern string) error {
	if _, err := b.queue(queue); err != nil {
		return err
	}
	return b.topology.Bind(queue, exchange, pattern)
}

// Published returns the envelopes published to a queue so far. It is empty
// unless the bus was built WithRecording.
func (b *MemoryBus) Published(queue string) []Envelope {
	b.recMu.Lock()
	defer b.recMu.Unlock()
	out := make([]Envelope, len(b.published[queue]))
	copy(out, b.published[queue])
	return out
}

// Close stops accepting publishes and ends Consume loops once queues drain.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	return nil
}
