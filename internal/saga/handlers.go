package saga

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"surety/internal/messaging"
	policymodels "surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
)

// PolicySteps are the policy transitions driven by replies from other
// services.
type PolicySteps interface {
	CompleteCreditAssessment(ctx context.Context, id uuid.UUID, result map[string]any) (*policymodels.Policy, error)
	CompletePricing(ctx context.Context, id uuid.UUID, result policymodels.PricingResult) (*policymodels.Policy, error)
}

// Register binds the saga handlers to their queues.
func Register(r *Router, policies PolicySteps, worker *PricingWorker, settlement messaging.Handler, logger *slog.Logger) {
	r.Register(messaging.QueueCreditAssessmentResult, CreditResultHandler(policies, logger))
	r.Register(messaging.QueuePricing, worker.Handle)
	r.Register(messaging.QueuePricingResult, PricingResultHandler(policies, logger))
	r.Register(messaging.QueueOrderPaid, settlement)
}

// CreditResultHandler moves a policy out of credit assessment once the
// external assessment replies.
func CreditResultHandler(policies PolicySteps, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		res, ok := env.Payload.(*messaging.CreditAssessmentCompleted)
		if !ok {
			return unexpected(env, messaging.QueueCreditAssessmentResult)
		}
		p, err := policies.CompleteCreditAssessment(ctx, res.PolicyID, res.Result())
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "credit assessment result applied",
			"policy_id", p.ID,
			"score", res.Score,
			"approved", res.Approved,
		)
		return nil
	}
}

// PricingResultHandler applies an approved premium to its policy.
func PricingResultHandler(policies PolicySteps, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		res, ok := env.Payload.(*messaging.PricingCompleted)
		if !ok {
			return unexpected(env, messaging.QueuePricingResult)
		}
		p, err := policies.CompletePricing(ctx, res.PolicyID, policymodels.PricingResult{
			PricingID:      res.PricingID,
			BasePremium:    res.BasePremium,
			TotalPremium:   res.TotalPremium,
			PricingDetails: res.PricingDetails,
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "pricing result applied",
			"policy_id", p.ID,
			"pricing_id", res.PricingID,
		)
		return nil
	}
}

func unexpected(env messaging.Envelope, destination string) error {
	return dErrors.New(dErrors.CodeValidation, "unexpected payload "+string(env.Type)+" on "+destination)
}
