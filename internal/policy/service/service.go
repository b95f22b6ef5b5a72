// Package service drives the policy issuance saga. Every transition locks the
// aggregate, checks its guard, applies the change, records an audit event and
// enqueues the outbound messages in one local transaction.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"surety/internal/outbox"
	"surety/internal/platform/metrics"
	"surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	txcontext "surety/pkg/platform/tx"
)

var tracer = otel.Tracer("surety/policy")

type PolicyStore interface {
	Create(ctx context.Context, p *models.Policy) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	FindByNumber(ctx context.Context, number string) (*models.Policy, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Policy, int, error)
	Execute(ctx context.Context, id uuid.UUID, validate func(*models.Policy) error, mutate func(*models.Policy)) (*models.Policy, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NextSequence(ctx context.Context, series string) (int64, error)
}

type EventStore interface {
	Append(ctx context.Context, e *models.AuditEvent) error
	ListByPolicy(ctx context.Context, policyID uuid.UUID) ([]models.AuditEvent, error)
	DeleteByPolicy(ctx context.Context, policyID uuid.UUID) error
}

// StoreTx runs a unit of work atomically.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	policies PolicyStore
	events   EventStore
	outbox   *outbox.Writer
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(policies PolicyStore, events EventStore, writer *outbox.Writer, opts ...Option) *Service {
	s := &Service{
		policies: policies,
		events:   events,
		outbox:   writer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLockRunner()
	}
	return s
}

// step is one state machine transition. after runs inside the same
// transaction once the aggregate has been written.
type step struct {
	operation string
	validate  func(p *models.Policy) error
	mutate    func(p *models.Policy)
	after     func(ctx context.Context, p *models.Policy) error
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, st step) (*models.Policy, error) {
	ctx, span := tracer.Start(ctx, "policy."+st.operation, trace.WithAttributes(
		attribute.String("policy.id", id.String()),
	))
	defer span.End()

	ctx = txcontext.WithShardKey(ctx, id.String())
	var result *models.Policy
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.policies.Execute(txCtx, id, st.validate, st.mutate)
		if err != nil {
			return wrapPolicyErr(err, st.operation)
		}
		if st.after != nil {
			if err := st.after(txCtx, p); err != nil {
				return err
			}
		}
		result = p
		return nil
	})
	if err != nil {
		s.metrics.IncrementTransition(st.operation, outcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.IncrementTransition(st.operation, "success")
	span.SetAttributes(attribute.String("policy.status", string(result.Status)))
	return result, nil
}

func (s *Service) recordEvent(ctx context.Context, e *models.AuditEvent) error {
	if err := s.events.Append(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record policy event")
	}
	return nil
}

func outcomeOf(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return "invalid"
	default:
		return "error"
	}
}

func wrapPolicyErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Policy not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "Policy was modified concurrently")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
