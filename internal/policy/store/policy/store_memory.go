package policy

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"surety/internal/policy/models"
	"surety/pkg/platform/sentinel"
)

// InMemory keeps policies in maps guarded by a single mutex. Execute holds
// the write lock across validate and mutate.
type InMemory struct {
	mu        sync.RWMutex
	policies  map[uuid.UUID]*models.Policy
	byNumber  map[string]uuid.UUID
	sequences map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		policies:  make(map[uuid.UUID]*models.Policy),
		byNumber:  make(map[string]uuid.UUID),
		sequences: make(map[string]int64),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byNumber[p.PolicyNumber]; ok {
		return sentinel.ErrConflict
	}
	c := p.Clone()
	c.Version = 1
	p.Version = 1
	s.policies[p.ID] = c
	s.byNumber[p.PolicyNumber] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.policies[id].Clone(), nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Policy, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Policy
	for _, p := range s.policies {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if filter.CustomerID != "" && p.CustomerID != filter.CustomerID {
			continue
		}
		if filter.AgentID != "" && p.AgentID != filter.AgentID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].PolicyNumber > matched[j].PolicyNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	out := make([]*models.Policy, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, p.Clone())
	}
	return out, total, nil
}

// Execute validates and mutates a copy, then stores it with the next version.
// A failed validation leaves the stored policy untouched.
func (s *InMemory) Execute(_ context.Context, id uuid.UUID, validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := current.Clone()
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)
	next.Version = current.Version + 1
	s.policies[id] = next
	return next.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byNumber, p.PolicyNumber)
	delete(s.policies, id)
	return nil
}

// NextSequence returns the next number in series, starting at 1.
func (s *InMemory) NextSequence(_ context.Context, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[series]++
	return s.sequences[series], nil
}
