package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"surety/internal/platform/metrics"
	"surety/internal/pricing/models"
	"surety/pkg/platform/circuit"
)

// Store is the durable rule storage.
type Store interface {
	Create(ctx context.Context, rule *models.PricingRule) error
	Update(ctx context.Context, rule *models.PricingRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PricingRule, error)
	ListActive(ctx context.Context) ([]models.PricingRule, error)
}

// Cache holds the active rule set for a bounded time.
type Cache interface {
	Get(ctx context.Context) ([]models.PricingRule, bool, error)
	Set(ctx context.Context, rules []models.PricingRule, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// DefaultCacheTTL is how long the active rule set is served from cache.
const DefaultCacheTTL = 30 * time.Minute

// CachedSource serves active rules from the cache, falling back to the store
// on a miss and repopulating the cache.
//
// A failed cache call opens the breaker: an invalidation may have been lost,
// so cache hits are ignored until enough cache calls succeed again. Reads in
// that window go to the store and rewrite the cached set.
type CachedSource struct {
	store   Store
	cache   Cache
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCachedSource(store Store, cache Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		breaker: circuit.New("rule-cache", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(3)),
		logger:  logger,
		metrics: m,
	}
}

func (s *CachedSource) ActiveRules(ctx context.Context) ([]models.PricingRule, error) {
	rules, ok, err := s.cache.Get(ctx)
	switch {
	case err != nil:
		s.cacheFailed(ctx, "rule cache read failed, loading from store", err)
		s.metrics.IncrementRuleCache("error")
	case !s.cacheSucceeded(ctx):
		s.metrics.IncrementRuleCache("bypass")
	case ok:
		s.metrics.IncrementRuleCache("hit")
		return rules, nil
	default:
		s.metrics.IncrementRuleCache("miss")
	}

	rules, err = s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, rules, s.ttl); err != nil {
		s.cacheFailed(ctx, "failed to cache active rules", err)
	} else {
		s.cacheSucceeded(ctx)
	}
	return rules, nil
}

// CacheTrusted reports whether cache hits are currently served.
func (s *CachedSource) CacheTrusted() bool {
	return !s.breaker.IsOpen()
}

func (s *CachedSource) cacheFailed(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg, "error", err)
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "rule cache distrusted, serving rules from store", "breaker", s.breaker.Name())
	}
}

func (s *CachedSource) cacheSucceeded(ctx context.Context) bool {
	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rule cache trusted again", "breaker", s.breaker.Name())
	}
	return usePrimary
}

// Create stores a rule and drops the cached set so it takes effect on the
// next calculation.
func (s *CachedSource) Create(ctx context.Context, rule *models.PricingRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.store.Create(ctx, rule); err != nil {
		return err
	}
	return s.Invalidate(ctx)
}

// Update replaces a rule and drops the cached set.
func (s *CachedSource) Update(ctx context.Context, rule *models.PricingRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, rule); err != nil {
		return err
	}
	return s.Invalidate(ctx)
}

func (s *CachedSource) FindByID(ctx context.Context, id uuid.UUID) (*models.PricingRule, error) {
	return s.store.FindByID(ctx, id)
}

func (s *CachedSource) Invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.cacheFailed(ctx, "failed to invalidate rule cache", err)
		return nil
	}
	s.cacheSucceeded(ctx)
	return nil
}
