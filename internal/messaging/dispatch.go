package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"surety/internal/platform/metrics"
	"surety/pkg/requestcontext"
)

var tracer = otel.Tracer("surety/messaging")

// deliver decodes raw and runs h. It never returns an error: a decode or
// handler failure is logged and the message is dropped, which is the
// nack-without-requeue contract of the bus.
func deliver(ctx context.Context, logger *slog.Logger, m *metrics.Metrics, destination string, raw []byte, h Handler) {
	start := time.Now()

	env, err := Decode(raw)
	if err != nil {
		logger.ErrorContext(ctx, "dropping undecodable message",
			"destination", destination,
			"error", err,
		)
		m.ObserveConsumed(destination, "nack", start)
		return
	}

	ctx, span := tracer.Start(ctx, "consume "+destination)
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", destination),
		attribute.String("messaging.message_id", env.ID),
		attribute.String("messaging.message_type", string(env.Type)),
	)

	ctx = requestcontext.WithCorrelationID(ctx, env.CorrelationID)
	ctx = requestcontext.WithTime(ctx, time.Now())

	if err := h(ctx, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		logger.ErrorContext(ctx, "message handler failed, dropping message",
			"destination", destination,
			"message_id", env.ID,
			"type", env.Type,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		m.ObserveConsumed(destination, "nack", start)
		return
	}
	m.ObserveConsumed(destination, "ack", start)
}
