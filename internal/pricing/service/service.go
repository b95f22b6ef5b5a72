// Package service implements the pricing lifecycle: draft creation with rule
// evaluation, approval into the saga, rejection, recalculation and history.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"surety/internal/outbox"
	"surety/internal/platform/metrics"
	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	txcontext "surety/pkg/platform/tx"
)

type PricingStore interface {
	Create(ctx context.Context, p *models.Pricing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Pricing, error)
	FindActiveByPolicy(ctx context.Context, policyID uuid.UUID) (*models.Pricing, error)
	FindByPolicy(ctx context.Context, policyID uuid.UUID) ([]*models.Pricing, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Pricing, int, error)
	Execute(ctx context.Context, id uuid.UUID, validate func(*models.Pricing) error, mutate func(*models.Pricing)) (*models.Pricing, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type HistoryStore interface {
	Append(ctx context.Context, h *models.History) error
	ListByPricing(ctx context.Context, pricingID uuid.UUID) ([]models.History, error)
}

// Calculator runs the rule engine over a pricing.
type Calculator interface {
	CalculateFinalPremium(ctx context.Context, p *models.Pricing, metadata map[string]any) (*models.Pricing, error)
	GetApplicableRules(ctx context.Context, metadata map[string]any) []models.PricingRule
}

// RuleAdmin writes rules and keeps the active-rule cache coherent.
type RuleAdmin interface {
	Create(ctx context.Context, rule *models.PricingRule) error
	Update(ctx context.Context, rule *models.PricingRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PricingRule, error)
	ActiveRules(ctx context.Context) ([]models.PricingRule, error)
}

// StoreTx runs a unit of work atomically.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	pricings PricingStore
	history  HistoryStore
	engine   Calculator
	rules    RuleAdmin
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

func WithRuleAdmin(rules RuleAdmin) Option {
	return func(s *Service) {
		s.rules = rules
	}
}

func New(pricings PricingStore, history HistoryStore, engine Calculator, writer *outbox.Writer, opts ...Option) *Service {
	s := &Service{
		pricings: pricings,
		history:  history,
		engine:   engine,
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

func wrapPricingErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Pricing not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "Active pricing already exists for this policy")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
