// Package outbox implements the transactional outbox: services enqueue
// outbound messages in the same transaction as the state change they
// describe, and the Relay publishes them to the bus afterwards.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"surety/internal/messaging"
)

// Entry is one pending or processed outbound message.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	Destination   string
	EventType     string
	// Key is the bus partitioning key, normally the aggregate id.
	Key         string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Store persists entries. Enqueue, FetchPending and MarkProcessed must join
// the transaction carried by ctx when there is one.
type Store interface {
	Enqueue(ctx context.Context, entry Entry) error
	// FetchPending returns up to limit unprocessed entries in creation
	// order, locking them against concurrent relays.
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Writer encodes envelopes into entries.
type Writer struct {
	store Store
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store}
}

// Add encodes env and enqueues it for destination.
func (w *Writer) Add(ctx context.Context, aggregateType, aggregateID, destination string, env messaging.Envelope) error {
	payload, err := messaging.Encode(env)
	if err != nil {
		return fmt.Errorf("encode outbox message: %w", err)
	}
	return w.store.Enqueue(ctx, Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Destination:   destination,
		EventType:     string(env.Type),
		Key:           aggregateID,
		Payload:       payload,
		CreatedAt:     env.OccurredAt,
	})
}
