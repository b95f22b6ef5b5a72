package settlement

import (
	"context"
	"sync"
	"time"

	"surety/pkg/platform/sentinel"
)

// memorySweepEvery is how many claims pass between sweeps of expired entries.
const memorySweepEvery = 128

type memoryEntry struct {
	marker    Marker
	token     string
	expiresAt time.Time
}

// MemoryMarkers is a single-process marker store with expiry. Expired
// entries are swept every memorySweepEvery claims.
type MemoryMarkers struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	claims  int
	now     func() time.Time
}

func NewMemoryMarkers() *MemoryMarkers {
	return &MemoryMarkers{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryMarkers) Claim(_ context.Context, transactionID string, ttl time.Duration) (Claim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.claims++
	if s.claims%memorySweepEvery == 0 {
		s.sweep(now)
	}

	key := markerKey(transactionID)
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return Claim{}, false, nil
	}
	c := newClaim(transactionID)
	s.entries[key] = memoryEntry{
		marker:    Marker{TransactionID: transactionID, State: StateProcessing},
		token:     c.Token,
		expiresAt: now.Add(ttl),
	}
	return c, true, nil
}

func (s *MemoryMarkers) Complete(_ context.Context, c Claim, m Marker, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := markerKey(c.TransactionID)
	if !s.holds(key, c) {
		return sentinel.ErrConflict
	}
	m.TransactionID = c.TransactionID
	m.State = StateProcessed
	s.entries[key] = memoryEntry{marker: m, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryMarkers) Release(_ context.Context, c Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := markerKey(c.TransactionID)
	if s.holds(key, c) {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryMarkers) Get(_ context.Context, transactionID string) (*Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[markerKey(transactionID)]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	m := e.marker
	return &m, nil
}

// Len reports the number of entries held, expired ones included.
func (s *MemoryMarkers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryMarkers) holds(key string, c Claim) bool {
	e, ok := s.entries[key]
	return ok && e.token != "" && e.token == c.Token && s.now().Before(e.expiresAt)
}

func (s *MemoryMarkers) sweep(now time.Time) {
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
