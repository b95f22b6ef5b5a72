package event

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surety/internal/policy/models"
)

// InMemory is an append-only audit log keyed by policy.
type InMemory struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]models.AuditEvent
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[uuid.UUID][]models.AuditEvent)}
}

func (s *InMemory) Append(_ context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.PolicyID] = append(s.events[e.PolicyID], *e)
	return nil
}

// ListByPolicy returns the events of one policy, newest first.
func (s *InMemory) ListByPolicy(_ context.Context, policyID uuid.UUID) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[policyID]
	out := make([]models.AuditEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) DeleteByPolicy(_ context.Context, policyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, policyID)
	return nil
}
