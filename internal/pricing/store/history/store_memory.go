package history

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surety/internal/pricing/models"
)

// InMemory is an append-only history log.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.History
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, h *models.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *h)
	return nil
}

// ListByPricing returns the entries for one pricing, newest first.
func (s *InMemory) ListByPricing(_ context.Context, pricingID uuid.UUID) ([]models.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.History
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].PricingID == pricingID {
			out = append(out, s.entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
