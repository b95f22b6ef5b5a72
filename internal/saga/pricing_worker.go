package saga

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surety/internal/messaging"
	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
)

// PricingEngineActor is recorded as creator and approver of worker quotes.
const PricingEngineActor = "system:pricing-engine"

const calculationMethod = "coverage_rate"

// DefaultBaseRate is the share of coverage quoted as base premium.
var DefaultBaseRate = decimal.RequireFromString("0.015")

// Pricer is the part of the pricing service the worker drives.
type Pricer interface {
	Create(ctx context.Context, req *models.CreateRequest, createdBy string) (*models.Pricing, error)
	Approve(ctx context.Context, id uuid.UUID, approvedBy, notes string) (*models.Pricing, error)
}

// PricingWorker answers pricing.queue requests. It quotes a base premium
// from the coverage, lets the rule engine adjust it, and approves the draft
// so the result flows back on pricing.result.queue.
type PricingWorker struct {
	pricing     Pricer
	baseRate    decimal.Decimal
	autoApprove bool
	logger      *slog.Logger
}

type WorkerOption func(w *PricingWorker)

func WithBaseRate(rate decimal.Decimal) WorkerOption {
	return func(w *PricingWorker) {
		w.baseRate = rate
	}
}

// WithAutoApprove controls whether drafts are approved immediately. When
// false the draft waits for an underwriter to approve it over HTTP.
func WithAutoApprove(enabled bool) WorkerOption {
	return func(w *PricingWorker) {
		w.autoApprove = enabled
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *PricingWorker) {
		w.logger = logger
	}
}

func NewPricingWorker(pricing Pricer, opts ...WorkerOption) *PricingWorker {
	w := &PricingWorker{
		pricing:     pricing,
		baseRate:    DefaultBaseRate,
		autoApprove: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *PricingWorker) Handle(ctx context.Context, env messaging.Envelope) error {
	req, ok := env.Payload.(*messaging.PricingRequested)
	if !ok {
		return unexpected(env, messaging.QueuePricing)
	}

	rate := w.baseRate
	draft, err := w.pricing.Create(ctx, &models.CreateRequest{
		PolicyID:          req.PolicyID,
		BasePremium:       req.CoverageAmount.Mul(rate).Round(2),
		CoverageAmount:    req.CoverageAmount,
		PremiumRate:       &rate,
		PricingDetails:    ruleMetadata(req),
		CalculationMethod: calculationMethod,
		Notes:             "Quoted for policy " + req.PolicyNumber,
	}, PricingEngineActor)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			w.logger.InfoContext(ctx, "pricing already active for policy, skipping request",
				"policy_id", req.PolicyID,
				"policy_number", req.PolicyNumber,
			)
			return nil
		}
		return err
	}

	if !w.autoApprove {
		w.logger.InfoContext(ctx, "pricing draft awaits approval",
			"pricing_id", draft.ID,
			"policy_id", draft.PolicyID,
		)
		return nil
	}
	if _, err := w.pricing.Approve(ctx, draft.ID, PricingEngineActor, ""); err != nil {
		return err
	}
	return nil
}

// ruleMetadata is the engine input: policy type, risk level and coverage.
// Coverage is a float so it survives a JSON round trip as a number.
func ruleMetadata(req *messaging.PricingRequested) map[string]any {
	md := map[string]any{
		"type":           req.Type,
		"coverageAmount": req.CoverageAmount.InexactFloat64(),
	}
	if risk, ok := req.CreditAssessment["riskLevel"]; ok {
		md["riskLevel"] = risk
	}
	return md
}
