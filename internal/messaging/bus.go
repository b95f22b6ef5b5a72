package messaging

import (
	"context"
)

// Handler processes one delivered envelope. Returning nil acknowledges the
// message; returning an error negatively acknowledges it without requeue,
// so the message is logged and dropped.
type Handler func(ctx context.Context, env Envelope) error

// Publisher sends envelopes to a queue or to an exchange.
type Publisher interface {
	Publish(ctx context.Context, destination string, env Envelope, opts ...PublishOption) error
}

// Bus is the durable, topic-routed queue abstraction. One instance is
// created per process and closed on shutdown.
type Bus interface {
	Publisher
	// Consume blocks, invoking h once per delivered message on destination,
	// until ctx is cancelled.
	Consume(ctx context.Context, destination string, h Handler) error
	// CreateExchange declares a topic exchange. Declaring twice is a no-op.
	CreateExchange(ctx context.Context, name string) error
	// BindQueue routes messages published to exchange whose routing key
	// matches pattern into queue.
	BindQueue(ctx context.Context, queue, exchange, pattern string) error
	Close() error
}

type publishOptions struct {
	key        string
	routingKey string
}

// PublishOption customizes a single publish.
type PublishOption func(*publishOptions)

// WithKey sets the partitioning key. Messages with the same key are
// delivered in publish order on transports that support it.
func WithKey(key string) PublishOption {
	return func(o *publishOptions) { o.key = key }
}

// WithRoutingKey sets the routing key used when publishing to an exchange.
func WithRoutingKey(rk string) PublishOption {
	return func(o *publishOptions) { o.routingKey = rk }
}

func applyOptions(opts []PublishOption) publishOptions {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
