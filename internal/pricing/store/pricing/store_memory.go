package pricing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surety/internal/pricing/models"
	"surety/pkg/platform/sentinel"
)

// InMemory keeps pricings in a map guarded by a single mutex.
type InMemory struct {
	mu       sync.RWMutex
	pricings map[uuid.UUID]*models.Pricing
}

func NewInMemory() *InMemory {
	return &InMemory{pricings: make(map[uuid.UUID]*models.Pricing)}
}

func (s *InMemory) Create(_ context.Context, p *models.Pricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pricings[p.ID]; ok {
		return sentinel.ErrConflict
	}
	if p.Status == models.StatusActive && s.activeFor(p.PolicyID, p.ID) != nil {
		return sentinel.ErrConflict
	}
	s.pricings[p.ID] = p.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pricings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) FindActiveByPolicy(_ context.Context, policyID uuid.UUID) (*models.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.activeFor(policyID, uuid.Nil)
	if p == nil {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) FindByPolicy(_ context.Context, policyID uuid.UUID) ([]*models.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Pricing
	for _, p := range s.pricings {
		if p.PolicyID == policyID {
			out = append(out, p.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Pricing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Pricing
	for _, p := range s.pricings {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PolicyID != uuid.Nil && p.PolicyID != filter.PolicyID {
			continue
		}
		matched = append(matched, p.Clone())
	}
	sortNewestFirst(matched)

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

// Execute validates and mutates a pricing under the store lock. The mutation
// is applied to a copy and only stored when it keeps at most one active
// pricing per policy.
func (s *InMemory) Execute(_ context.Context, id uuid.UUID, validate func(*models.Pricing) error, mutate func(*models.Pricing)) (*models.Pricing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.pricings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := current.Clone()
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	if p.Status == models.StatusActive && s.activeFor(p.PolicyID, p.ID) != nil {
		return nil, sentinel.ErrConflict
	}
	s.pricings[id] = p
	return p.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pricings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.pricings, id)
	return nil
}

// activeFor returns the active pricing for a policy other than except.
func (s *InMemory) activeFor(policyID, except uuid.UUID) *models.Pricing {
	for _, p := range s.pricings {
		if p.PolicyID == policyID && p.ID != except && p.Status == models.StatusActive {
			return p
		}
	}
	return nil
}

func sortNewestFirst(ps []*models.Pricing) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID.String() < ps[j].ID.String()
	})
}
