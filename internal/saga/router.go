// Package saga wires the policy issuance steps to the message bus: credit
// assessment results, pricing requests, pricing results and payment
// confirmations each get a handler on their queue.
package saga

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"surety/internal/messaging"
	"surety/pkg/requestcontext"
)

// Router dispatches deliveries to destination-specific handlers.
type Router struct {
	bus      messaging.Bus
	handlers map[string]messaging.Handler
	logger   *slog.Logger
}

func NewRouter(bus messaging.Bus, logger *slog.Logger) *Router {
	return &Router{
		bus:      bus,
		handlers: make(map[string]messaging.Handler),
		logger:   logger,
	}
}

// Register adds a handler for a destination. A later registration for the
// same destination replaces the earlier one.
func (r *Router) Register(destination string, h messaging.Handler) {
	r.handlers[destination] = h
}

// Destinations returns the registered destinations in a stable order.
func (r *Router) Destinations() []string {
	out := make([]string, 0, len(r.handlers))
	for d := range r.handlers {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Run consumes every registered destination until ctx is cancelled or one
// consumer fails.
func (r *Router) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, dest := range r.Destinations() {
		h := r.handlers[dest]
		g.Go(func() error {
			r.logger.InfoContext(gctx, "saga consumer started", "destination", dest)
			err := r.bus.Consume(gctx, dest, r.dispatch(dest, h))
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Handle routes one envelope directly, without a bus. Unknown destinations
// are acknowledged so they are not redelivered.
func (r *Router) Handle(ctx context.Context, destination string, env messaging.Envelope) error {
	h, ok := r.handlers[destination]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for destination, skipping message",
			"destination", destination,
			"message_id", env.ID,
		)
		return nil
	}
	return r.dispatch(destination, h)(ctx, env)
}

func (r *Router) dispatch(destination string, h messaging.Handler) messaging.Handler {
	actor := "saga:" + destination
	return func(ctx context.Context, env messaging.Envelope) error {
		return h(requestcontext.WithActor(ctx, actor), env)
	}
}
