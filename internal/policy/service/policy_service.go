package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"surety/internal/messaging"
	"surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/requestcontext"
)

const aggregatePolicy = "policy"

// Create stores a DRAFT policy with a freshly sequenced policy number.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest, createdBy string) (*models.Policy, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "policy.create", trace.WithAttributes(
		attribute.String("policy.type", string(req.Type)),
	))
	defer span.End()

	var created *models.Policy
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		seq, err := s.policies.NextSequence(txCtx, models.NumberSeries(req.Type, now))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate policy number")
		}
		p := &models.Policy{
			ID:              uuid.New(),
			PolicyNumber:    models.FormatNumber(req.Type, now, seq),
			Type:            req.Type,
			Status:          models.StatusDraft,
			PaymentStatus:   models.PaymentPending,
			CustomerID:      req.CustomerID,
			AgentID:         createdBy,
			PremiumAmount:   req.PremiumAmount,
			CoverageAmount:  req.CoverageAmount,
			TotalPremium:    req.PremiumAmount,
			StartDate:       req.StartDate,
			EndDate:         req.EndDate,
			CoverageDetails: req.CoverageDetails,
			Metadata:        req.Metadata,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.policies.Create(txCtx, p); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "Policy number already exists")
			}
			return wrapPolicyErr(err, "create policy")
		}
		if err := s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventPolicyCreated,
			"Policy created", map[string]any{"policyNumber": p.PolicyNumber, "type": string(p.Type)}, now)); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		s.metrics.IncrementTransition("create", outcomeOf(err))
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncrementTransition("create", "success")
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", created.ID,
		"policy_number", created.PolicyNumber,
		"type", created.Type,
	)
	return created, nil
}

func (s *Service) FindAll(ctx context.Context, filter models.ListFilter) (*models.ListResult, error) {
	filter.Normalize()
	items, total, err := s.policies.List(ctx, filter)
	if err != nil {
		return nil, wrapPolicyErr(err, "list policies")
	}
	if items == nil {
		items = []*models.Policy{}
	}
	return &models.ListResult{Policies: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	p, err := s.policies.FindByID(ctx, id)
	if err != nil {
		return nil, wrapPolicyErr(err, "load policy")
	}
	return p, nil
}

func (s *Service) FindByPolicyNumber(ctx context.Context, number string) (*models.Policy, error) {
	p, err := s.policies.FindByNumber(ctx, number)
	if err != nil {
		return nil, wrapPolicyErr(err, "load policy")
	}
	return p, nil
}

// Update applies a partial update. A patch that sets status cancelled takes
// the cancellation path; any other status change is rejected.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *models.UpdateRequest) (*models.Policy, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.IsCancellation() {
		reason := "Cancelled by update"
		if req.CancellationReason != nil && *req.CancellationReason != "" {
			reason = *req.CancellationReason
		}
		return s.CancelPolicy(ctx, id, reason)
	}

	now := requestcontext.Now(ctx)
	return s.transition(ctx, id, step{
		operation: "update",
		validate: func(p *models.Policy) error {
			return p.CanUpdate(req)
		},
		mutate: func(p *models.Policy) {
			p.ApplyUpdate(req, now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			return s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventPolicyUpdated,
				"Policy updated", map[string]any{"fields": req.ChangedFields()}, now))
		},
	})
}

// Remove deletes a policy that is not ACTIVE together with its events.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	ctx = txcontext.WithShardKey(ctx, id.String())
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.policies.FindByID(txCtx, id)
		if err != nil {
			return wrapPolicyErr(err, "load policy")
		}
		if err := p.CanRemove(); err != nil {
			return err
		}
		if err := s.events.DeleteByPolicy(txCtx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete policy events")
		}
		if err := s.policies.Delete(txCtx, id); err != nil {
			return wrapPolicyErr(err, "delete policy")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "policy removed", "policy_id", id)
	return nil
}

// InitiateCreditAssessment moves a DRAFT policy into credit assessment and
// asks the credit capability for a score.
func (s *Service) InitiateCreditAssessment(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	now := requestcontext.Now(ctx)
	p, err := s.transition(ctx, id, step{
		operation: "initiate_credit_assessment",
		validate:  (*models.Policy).CanInitiateCreditAssessment,
		mutate: func(p *models.Policy) {
			p.ApplyCreditAssessmentRequested(now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			if err := s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventCreditAssessmentRequested,
				"Credit assessment requested", nil, now)); err != nil {
				return err
			}
			return s.enqueue(txCtx, p, messaging.QueueCreditAssessment, &messaging.CreditAssessmentRequested{
				PolicyID:       p.ID,
				PolicyNumber:   p.PolicyNumber,
				CustomerID:     p.CustomerID,
				CoverageAmount: p.CoverageAmount,
				Type:           string(p.Type),
				CustomerData:   customerData(p.Metadata),
				Timestamp:      now,
			}, now)
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "credit assessment initiated", "policy_id", p.ID, "policy_number", p.PolicyNumber)
	return p, nil
}

// CompleteCreditAssessment stores the assessment and requests pricing.
func (s *Service) CompleteCreditAssessment(ctx context.Context, id uuid.UUID, result map[string]any) (*models.Policy, error) {
	now := requestcontext.Now(ctx)
	p, err := s.transition(ctx, id, step{
		operation: "complete_credit_assessment",
		validate:  (*models.Policy).CanCompleteCreditAssessment,
		mutate: func(p *models.Policy) {
			p.ApplyCreditAssessment(result, now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			if err := s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventCreditAssessmentCompleted,
				"Credit assessment completed", result, now)); err != nil {
				return err
			}
			return s.enqueue(txCtx, p, messaging.QueuePricing, &messaging.PricingRequested{
				PolicyID:         p.ID,
				PolicyNumber:     p.PolicyNumber,
				Type:             string(p.Type),
				CoverageAmount:   p.CoverageAmount,
				CoverageDetails:  coverageMap(p.CoverageDetails),
				CreditAssessment: p.CreditAssessment,
				StartDate:        p.StartDate,
				EndDate:          p.EndDate,
				Timestamp:        now,
			}, now)
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "credit assessment completed", "policy_id", p.ID, "risk_level", result["riskLevel"])
	return p, nil
}

// CompletePricing stores the approved premium and opens the payment window.
func (s *Service) CompletePricing(ctx context.Context, id uuid.UUID, result models.PricingResult) (*models.Policy, error) {
	now := requestcontext.Now(ctx)
	p, err := s.transition(ctx, id, step{
		operation: "complete_pricing",
		validate:  (*models.Policy).CanCompletePricing,
		mutate: func(p *models.Policy) {
			p.ApplyPricing(result, now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			return s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventPricingCompleted,
				"Pricing completed", map[string]any{
					"pricingId":    result.PricingID.String(),
					"totalPremium": result.TotalPremium.String(),
				}, now))
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pricing completed",
		"policy_id", p.ID,
		"total_premium", p.TotalPremium.String(),
		"payment_due", p.PaymentDueDate,
	)
	return p, nil
}

// ProcessPayment activates the policy and notifies billing, accounting and
// the order_paid channel. A DRAFT policy is accepted as a fast path that
// skips credit assessment and pricing.
func (s *Service) ProcessPayment(ctx context.Context, id uuid.UUID, req *models.PaymentRequest) (*models.Policy, error) {
	if req == nil {
		req = &models.PaymentRequest{}
	}
	now := requestcontext.Now(ctx)
	transactionID := req.TransactionID
	if transactionID == "" {
		transactionID = models.DefaultTransactionID(id, now)
	}
	method := req.PaymentMethod
	if method == "" {
		method = models.DefaultPaymentMethod
	}

	var fromDraft bool
	p, err := s.transition(ctx, id, step{
		operation: "process_payment",
		validate: func(p *models.Policy) error {
			if err := p.CanProcessPayment(); err != nil {
				return err
			}
			fromDraft = p.Status == models.StatusDraft
			return nil
		},
		mutate: func(p *models.Policy) {
			p.ApplyPayment(transactionID, now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			if err := s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventPaymentProcessed,
				"Payment processed", map[string]any{
					"transactionId": transactionID,
					"paymentMethod": method,
					"amount":        p.TotalPremium.String(),
				}, now)); err != nil {
				return err
			}
			return s.enqueuePaymentNotifications(txCtx, p, transactionID, method, now)
		},
	})
	if err != nil {
		return nil, err
	}

	if fromDraft {
		s.metrics.IncrementPaymentFastPath()
		s.logger.WarnContext(ctx, "payment accepted for draft policy, credit assessment and pricing skipped",
			"policy_id", p.ID,
			"policy_number", p.PolicyNumber,
		)
	}
	s.logger.InfoContext(ctx, "payment processed",
		"policy_id", p.ID,
		"policy_number", p.PolicyNumber,
		"transaction_id", transactionID,
	)
	return p, nil
}

func (s *Service) enqueuePaymentNotifications(ctx context.Context, p *models.Policy, transactionID, method string, now time.Time) error {
	premium := p.TotalPremium
	if premium.IsZero() {
		premium = p.PremiumAmount
	}
	if err := s.enqueue(ctx, p, messaging.QueueBilling, &messaging.BillingNotification{
		PolicyID:      p.ID,
		PolicyNumber:  p.PolicyNumber,
		CustomerID:    p.CustomerID,
		PremiumAmount: premium,
		PaymentDate:   now,
		EffectiveDate: now,
		EndDate:       p.EndDate,
		Timestamp:     now,
	}, now); err != nil {
		return err
	}
	if err := s.enqueue(ctx, p, messaging.QueueAccounting, &messaging.AccountingNotification{
		PolicyID:       p.ID,
		PolicyNumber:   p.PolicyNumber,
		CustomerID:     p.CustomerID,
		PremiumAmount:  premium,
		CoverageAmount: p.CoverageAmount,
		PaymentDate:    now,
		EffectiveDate:  now,
		Type:           string(p.Type),
		Timestamp:      now,
	}, now); err != nil {
		return err
	}
	return s.enqueue(ctx, p, messaging.QueueOrderPaid, &messaging.OrderPaid{
		PolicyID:       p.ID,
		PolicyNumber:   p.PolicyNumber,
		CustomerID:     p.CustomerID,
		PremiumAmount:  premium,
		PaymentDate:    now,
		PaymentStatus:  string(models.PaymentPaid),
		TransactionID:  transactionID,
		PaymentMethod:  method,
		CoverageAmount: p.CoverageAmount,
		Type:           string(p.Type),
		EffectiveDate:  now,
		EndDate:        p.EndDate,
		Timestamp:      now,
	}, now)
}

func (s *Service) CancelPolicy(ctx context.Context, id uuid.UUID, reason string) (*models.Policy, error) {
	now := requestcontext.Now(ctx)
	p, err := s.transition(ctx, id, step{
		operation: "cancel",
		validate:  (*models.Policy).CanCancel,
		mutate: func(p *models.Policy) {
			p.ApplyCancellation(reason, now)
		},
		after: func(txCtx context.Context, p *models.Policy) error {
			return s.recordEvent(txCtx, models.NewAuditEvent(p.ID, models.EventPolicyCancelled,
				"Policy cancelled", map[string]any{"reason": reason}, now))
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "policy cancelled", "policy_id", p.ID, "reason", reason)
	return p, nil
}

// GetPolicyEvents returns the audit trail of a policy, newest first.
func (s *Service) GetPolicyEvents(ctx context.Context, id uuid.UUID) ([]models.AuditEvent, error) {
	if _, err := s.policies.FindByID(ctx, id); err != nil {
		return nil, wrapPolicyErr(err, "load policy")
	}
	events, err := s.events.ListByPolicy(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy events")
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events, nil
}

func (s *Service) enqueue(ctx context.Context, p *models.Policy, destination string, payload messaging.Payload, now time.Time) error {
	env := messaging.NewEnvelope(payload, now, correlationFor(ctx, p))
	if err := s.outbox.Add(ctx, aggregatePolicy, p.ID.String(), destination, env); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue "+destination)
	}
	return nil
}

// correlationFor keeps one correlation id across the saga. Steps started
// over HTTP without one fall back to the policy id.
func correlationFor(ctx context.Context, p *models.Policy) string {
	if id := requestcontext.CorrelationID(ctx); id != "" {
		return id
	}
	return p.ID.String()
}

func customerData(metadata map[string]any) map[string]any {
	if data, ok := metadata["customerData"].(map[string]any); ok {
		return data
	}
	return nil
}

func coverageMap(c models.CoverageDetails) map[string]any {
	return map[string]any{
		"description": c.Description,
		"terms":       c.Terms,
		"exclusions":  c.Exclusions,
		"conditions":  c.Conditions,
	}
}
