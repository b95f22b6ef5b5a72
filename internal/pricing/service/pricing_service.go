package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surety/internal/messaging"
	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/requestcontext"
)

// inputComponentsKey holds the components as entered, before any rule
// contribution, so recalculation starts from the same inputs.
const inputComponentsKey = "inputComponents"

// Create stores a draft pricing for a policy after running the rule engine.
// Metadata for rule matching is req.PricingDetails.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest, createdBy string) (*models.Pricing, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx = txcontext.WithShardKey(ctx, req.PolicyID.String())

	var created *models.Pricing
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.pricings.FindActiveByPolicy(txCtx, req.PolicyID); err == nil {
			return dErrors.New(dErrors.CodeConflict, "Active pricing already exists for this policy")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return wrapPricingErr(err, "load active pricing")
		}

		now := requestcontext.Now(txCtx)
		draft := &models.Pricing{
			ID:                uuid.New(),
			PolicyID:          req.PolicyID,
			Status:            models.StatusDraft,
			BasePremium:       req.BasePremium,
			Taxes:             req.Taxes,
			Fees:              req.Fees,
			Discounts:         req.Discounts,
			Adjustments:       req.Adjustments,
			TotalPremium:      req.BasePremium,
			CoverageAmount:    req.CoverageAmount,
			PremiumRate:       req.PremiumRate,
			PricingDetails:    withInputComponents(req.PricingDetails, req.Taxes, req.Fees, req.Discounts, req.Adjustments),
			CalculationMethod: req.CalculationMethod,
			Notes:             req.Notes,
			CreatedBy:         createdBy,
			UpdatedBy:         createdBy,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		calculated, err := s.engine.CalculateFinalPremium(txCtx, draft, req.PricingDetails)
		if err != nil {
			return err
		}
		if err := s.pricings.Create(txCtx, calculated); err != nil {
			return wrapPricingErr(err, "create pricing")
		}
		if err := s.appendHistory(txCtx, calculated.ID, models.HistoryCreated, nil, calculated, "Pricing created", createdBy); err != nil {
			return err
		}
		created = calculated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pricing created",
		"pricing_id", created.ID,
		"policy_id", created.PolicyID,
		"total_premium", created.TotalPremium.String(),
	)
	return created, nil
}

func (s *Service) FindAll(ctx context.Context, filter models.ListFilter) (*models.Page[*models.Pricing], error) {
	filter.Normalize()
	items, total, err := s.pricings.List(ctx, filter)
	if err != nil {
		return nil, wrapPricingErr(err, "list pricings")
	}
	if items == nil {
		items = []*models.Pricing{}
	}
	return &models.Page[*models.Pricing]{Data: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
	p, err := s.pricings.FindByID(ctx, id)
	if err != nil {
		return nil, wrapPricingErr(err, "load pricing")
	}
	return p, nil
}

func (s *Service) FindByPolicy(ctx context.Context, policyID uuid.UUID) ([]*models.Pricing, error) {
	ps, err := s.pricings.FindByPolicy(ctx, policyID)
	if err != nil {
		return nil, wrapPricingErr(err, "load pricings")
	}
	if ps == nil {
		ps = []*models.Pricing{}
	}
	return ps, nil
}

// Update applies a partial update. Active pricings accept only a move to
// inactive. A change to any premium component reruns the rule engine.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *models.UpdateRequest, updatedBy string) (*models.Pricing, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		before  *models.Pricing
		updated *models.Pricing
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := s.pricings.Execute(txCtx, id,
			func(p *models.Pricing) error {
				if p.Status == models.StatusActive && (req.Status == nil || *req.Status != models.StatusInactive) {
					return dErrors.New(dErrors.CodeConflict, "Cannot modify active pricing")
				}
				before = p.Clone()
				next, err := s.applyUpdate(txCtx, p.Clone(), req)
				if err != nil {
					return err
				}
				next.UpdatedBy = updatedBy
				next.UpdatedAt = now
				updated = next
				return nil
			},
			func(p *models.Pricing) {
				*p = *updated.Clone()
			},
		)
		if err != nil {
			return wrapPricingErr(err, "update pricing")
		}
		updated = p
		return s.appendHistory(txCtx, id, models.HistoryUpdated, before, p, "Pricing updated", updatedBy)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) applyUpdate(ctx context.Context, p *models.Pricing, req *models.UpdateRequest) (*models.Pricing, error) {
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.CoverageAmount != nil {
		p.CoverageAmount = *req.CoverageAmount
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.PricingDetails != nil {
		p.PricingDetails = mergeDetails(p.PricingDetails, req.PricingDetails)
	}
	if !req.HasPremiumChanges() {
		return p, nil
	}

	inputs := inputComponents(p)
	if req.BasePremium != nil {
		p.BasePremium = *req.BasePremium
	}
	if req.Taxes != nil {
		inputs.taxes = *req.Taxes
	}
	if req.Fees != nil {
		inputs.fees = *req.Fees
	}
	if req.Discounts != nil {
		inputs.discounts = *req.Discounts
	}
	if req.Adjustments != nil {
		inputs.adjustments = *req.Adjustments
	}
	return s.calculateFrom(ctx, p, inputs)
}

// Approve activates a draft pricing and hands its premium back to the policy
// saga on pricing.result.queue.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approvedBy, notes string) (*models.Pricing, error) {
	var (
		before   *models.Pricing
		approved *models.Pricing
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := s.pricings.Execute(txCtx, id,
			func(p *models.Pricing) error {
				if !p.CanApprove() {
					return dErrors.New(dErrors.CodeConflict, "Only draft pricing can be approved")
				}
				before = p.Clone()
				return nil
			},
			func(p *models.Pricing) {
				p.Status = models.StatusActive
				p.ApprovedBy = approvedBy
				p.ApprovedAt = &now
				if notes != "" {
					p.Notes = notes
				}
				p.UpdatedBy = approvedBy
				p.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapPricingErr(err, "approve pricing")
		}
		if err := s.appendHistory(txCtx, id, models.HistoryApproved, before, p, "Pricing approved", approvedBy); err != nil {
			return err
		}

		env := messaging.NewEnvelope(&messaging.PricingCompleted{
			PolicyID:       p.PolicyID,
			PricingID:      p.ID,
			BasePremium:    p.BasePremium,
			TotalPremium:   p.TotalPremium,
			PricingDetails: publicDetails(p.PricingDetails),
			Timestamp:      now,
		}, now, requestcontext.CorrelationID(txCtx))
		if err := s.outbox.Add(txCtx, "pricing", p.PolicyID.String(), messaging.QueuePricingResult, env); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue pricing result")
		}
		approved = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pricing approved",
		"pricing_id", approved.ID,
		"policy_id", approved.PolicyID,
		"approved_by", approvedBy,
	)
	return approved, nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason, rejectedBy string) (*models.Pricing, error) {
	var (
		before   *models.Pricing
		rejected *models.Pricing
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := s.pricings.Execute(txCtx, id,
			func(p *models.Pricing) error {
				if !p.CanReject() {
					return dErrors.New(dErrors.CodeConflict, "Only draft pricing can be rejected")
				}
				before = p.Clone()
				return nil
			},
			func(p *models.Pricing) {
				p.Status = models.StatusInactive
				p.RejectionReason = reason
				p.UpdatedBy = rejectedBy
				p.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapPricingErr(err, "reject pricing")
		}
		rejected = p
		return s.appendHistory(txCtx, id, models.HistoryRejected, before, p, "Pricing rejected: "+reason, rejectedBy)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pricing rejected", "pricing_id", id, "reason", reason)
	return rejected, nil
}

// Recalculate reruns the rule engine from the stored input components using
// the pricing details as matching metadata.
func (s *Service) Recalculate(ctx context.Context, id uuid.UUID, recalculatedBy string) (*models.Pricing, error) {
	var (
		before       *models.Pricing
		recalculated *models.Pricing
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := s.pricings.Execute(txCtx, id,
			func(p *models.Pricing) error {
				before = p.Clone()
				next, err := s.calculateFrom(txCtx, p.Clone(), inputComponents(p))
				if err != nil {
					return err
				}
				next.UpdatedBy = recalculatedBy
				next.UpdatedAt = now
				recalculated = next
				return nil
			},
			func(p *models.Pricing) {
				*p = *recalculated.Clone()
			},
		)
		if err != nil {
			return wrapPricingErr(err, "recalculate pricing")
		}
		recalculated = p
		return s.appendHistory(txCtx, id, models.HistoryCalculated, before, p, "Premium recalculated", recalculatedBy)
	})
	if err != nil {
		return nil, err
	}
	return recalculated, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, deactivatedBy string) (*models.Pricing, error) {
	var (
		before      *models.Pricing
		deactivated *models.Pricing
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := s.pricings.Execute(txCtx, id,
			func(p *models.Pricing) error {
				if !p.CanDeactivate() {
					return dErrors.New(dErrors.CodeConflict, "Only active pricing can be deactivated")
				}
				before = p.Clone()
				return nil
			},
			func(p *models.Pricing) {
				p.Status = models.StatusInactive
				p.UpdatedBy = deactivatedBy
				p.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapPricingErr(err, "deactivate pricing")
		}
		deactivated = p
		return s.appendHistory(txCtx, id, models.HistoryDeactivated, before, p, "Pricing deactivated", deactivatedBy)
	})
	if err != nil {
		return nil, err
	}
	return deactivated, nil
}

func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.pricings.FindByID(txCtx, id)
		if err != nil {
			return wrapPricingErr(err, "load pricing")
		}
		if p.Status == models.StatusActive {
			return dErrors.New(dErrors.CodeConflict, "Cannot delete active pricing")
		}
		return wrapPricingErr(s.pricings.Delete(txCtx, id), "delete pricing")
	})
}

func (s *Service) GetHistory(ctx context.Context, id uuid.UUID) ([]models.History, error) {
	if _, err := s.pricings.FindByID(ctx, id); err != nil {
		return nil, wrapPricingErr(err, "load pricing")
	}
	entries, err := s.history.ListByPricing(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pricing history")
	}
	if entries == nil {
		entries = []models.History{}
	}
	return entries, nil
}

func (s *Service) appendHistory(ctx context.Context, pricingID uuid.UUID, action models.HistoryAction, before, after *models.Pricing, reason, by string) error {
	h := &models.History{
		ID:           uuid.New(),
		PricingID:    pricingID,
		Action:       action,
		OldValues:    models.Snapshot(before),
		NewValues:    models.Snapshot(after),
		ChangedBy:    by,
		ChangeReason: reason,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.history.Append(ctx, h); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pricing history")
	}
	if h.HasSignificantChange() {
		s.logger.InfoContext(ctx, "significant pricing change",
			"pricing_id", pricingID,
			"action", action,
			"old_total", h.OldValues["totalPremium"],
			"new_total", h.NewValues["totalPremium"],
		)
	}
	return nil
}

type components struct {
	taxes, fees, discounts, adjustments decimal.Decimal
}

// inputComponents reads the components recorded at creation, falling back to
// the stored figures for pricings that predate the record.
func inputComponents(p *models.Pricing) components {
	c := components{taxes: p.Taxes, fees: p.Fees, discounts: p.Discounts, adjustments: p.Adjustments}
	raw, ok := p.PricingDetails[inputComponentsKey].(map[string]any)
	if !ok {
		return c
	}
	read := func(key string, dst *decimal.Decimal) {
		switch v := raw[key].(type) {
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				*dst = d
			}
		case float64:
			*dst = decimal.NewFromFloat(v)
		case decimal.Decimal:
			*dst = v
		}
	}
	read("taxes", &c.taxes)
	read("fees", &c.fees)
	read("discounts", &c.discounts)
	read("adjustments", &c.adjustments)
	return c
}

func (s *Service) calculateFrom(ctx context.Context, p *models.Pricing, in components) (*models.Pricing, error) {
	p.Taxes = in.taxes
	p.Fees = in.fees
	p.Discounts = in.discounts
	p.Adjustments = in.adjustments
	p.PricingDetails = withInputComponents(p.PricingDetails, in.taxes, in.fees, in.discounts, in.adjustments)

	out, err := s.engine.CalculateFinalPremium(ctx, p, p.PricingDetails)
	if err != nil {
		return nil, fmt.Errorf("calculate premium: %w", err)
	}
	return out, nil
}

func withInputComponents(details map[string]any, taxes, fees, discounts, adjustments decimal.Decimal) map[string]any {
	out := mergeDetails(details, nil)
	out[inputComponentsKey] = map[string]any{
		"taxes":       taxes.String(),
		"fees":        fees.String(),
		"discounts":   discounts.String(),
		"adjustments": adjustments.String(),
	}
	return out
}

func mergeDetails(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// publicDetails drops bookkeeping keys before the details leave the service.
func publicDetails(details map[string]any) map[string]any {
	out := mergeDetails(details, nil)
	delete(out, inputComponentsKey)
	return out
}
