package outbox

import (
	"context"
	"log/slog"
	"time"

	"surety/internal/messaging"
	"surety/internal/platform/config"
	"surety/internal/platform/metrics"
)

// TxRunner runs fn in a transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Relay publishes pending entries in creation order. Delivery is
// at-least-once: an entry published but not yet marked processed when the
// process dies is published again.
type Relay struct {
	store     Store
	tx        TxRunner
	publisher messaging.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       config.OutboxConfig
	now       func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store Store, tx TxRunner, publisher messaging.Publisher, logger *slog.Logger, cfg config.OutboxConfig, opts ...Option) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	r := &Relay{
		store:     store,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Processed entries past the retention
// window are purged once an hour.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			}
		case <-cleanup.C:
			if err := r.Cleanup(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
			}
		}
	}
}

// RelayBatch publishes one batch and returns how many entries were marked
// processed. It stops at the first publish failure so later entries of the
// same aggregate are not sent ahead of it.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	relayed := 0
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := r.store.FetchPending(txCtx, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, e := range entries {
			env, err := messaging.Decode(e.Payload)
			if err != nil {
				r.logger.ErrorContext(txCtx, "discarding undecodable outbox entry",
					"outbox_id", e.ID,
					"destination", e.Destination,
					"error", err,
				)
				if err := r.store.MarkProcessed(txCtx, e.ID, r.now()); err != nil {
					return err
				}
				continue
			}
			if err := r.publisher.Publish(txCtx, e.Destination, env, messaging.WithKey(e.Key)); err != nil {
				r.metrics.IncrementRelayFailure()
				r.logger.WarnContext(txCtx, "outbox publish failed, will retry",
					"outbox_id", e.ID,
					"destination", e.Destination,
					"error", err,
				)
				return nil
			}
			if err := r.store.MarkProcessed(txCtx, e.ID, r.now()); err != nil {
				return err
			}
			r.metrics.ObserveRelayed(e.CreatedAt)
			relayed++
		}
		return nil
	})
	return relayed, err
}

// Cleanup deletes processed entries older than the retention window.
func (r *Relay) Cleanup(ctx context.Context) error {
	if r.cfg.Retention <= 0 {
		return nil
	}
	n, err := r.store.DeleteProcessedBefore(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "purged processed outbox entries", "count", n)
	}
	return nil
}
