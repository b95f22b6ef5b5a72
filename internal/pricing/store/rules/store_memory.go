package rules

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surety/internal/pricing/models"
	"surety/pkg/platform/sentinel"
)

// InMemory is a rule store for tests and single-process mode.
type InMemory struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]models.PricingRule
}

func NewInMemory() *InMemory {
	return &InMemory{rules: make(map[uuid.UUID]models.PricingRule)}
}

func (s *InMemory) Create(_ context.Context, rule *models.PricingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; ok {
		return sentinel.ErrConflict
	}
	s.rules[rule.ID] = *rule
	return nil
}

func (s *InMemory) Update(_ context.Context, rule *models.PricingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.rules[rule.ID] = *rule
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

// ListActive returns active rules ordered by priority descending.
func (s *InMemory) ListActive(_ context.Context) ([]models.PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PricingRule
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
