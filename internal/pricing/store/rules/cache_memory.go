package rules

import (
	"context"
	"sync"
	"time"

	"surety/internal/pricing/models"
)

// MemoryCache is a process-local rule cache.
type MemoryCache struct {
	mu        sync.Mutex
	rules     []models.PricingRule
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(context.Context) ([]models.PricingRule, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	out := make([]models.PricingRule, len(c.rules))
	copy(out, c.rules)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, rules []models.PricingRule, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = make([]models.PricingRule, len(rules))
	copy(c.rules, rules)
	c.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = nil
	return nil
}
