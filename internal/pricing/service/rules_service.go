package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	"surety/pkg/requestcontext"
)

var errRulesUnavailable = dErrors.New(dErrors.CodeInternal, "rule administration is not configured")

func (s *Service) CreateRule(ctx context.Context, rule *models.PricingRule, createdBy string) (*models.PricingRule, error) {
	if s.rules == nil {
		return nil, errRulesUnavailable
	}
	now := requestcontext.Now(ctx)
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.EffectiveDate.IsZero() {
		rule.EffectiveDate = now
	}
	rule.CreatedBy = createdBy
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := rule.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid pricing rule")
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "pricing rule already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create pricing rule")
	}
	s.logger.InfoContext(ctx, "pricing rule created", "rule_id", rule.ID, "name", rule.Name)
	return rule, nil
}

// UpdateRule replaces the editable fields of a rule. Identity and creation
// fields are kept from the stored rule.
func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, patch *models.PricingRule) (*models.PricingRule, error) {
	if s.rules == nil {
		return nil, errRulesUnavailable
	}
	existing, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *patch
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = requestcontext.Now(ctx)
	if updated.EffectiveDate.IsZero() {
		updated.EffectiveDate = existing.EffectiveDate
	}
	if err := updated.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid pricing rule")
	}
	if err := s.rules.Update(ctx, &updated); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update pricing rule")
	}
	s.logger.InfoContext(ctx, "pricing rule updated", "rule_id", updated.ID, "name", updated.Name)
	return &updated, nil
}

func (s *Service) DeactivateRule(ctx context.Context, id uuid.UUID) (*models.PricingRule, error) {
	if s.rules == nil {
		return nil, errRulesUnavailable
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.IsActive = false
	rule.UpdatedAt = requestcontext.Now(ctx)
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate pricing rule")
	}
	return rule, nil
}

func (s *Service) loadRule(ctx context.Context, id uuid.UUID) (*models.PricingRule, error) {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Pricing rule not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pricing rule")
	}
	return rule, nil
}

func (s *Service) ListActiveRules(ctx context.Context) ([]models.PricingRule, error) {
	if s.rules == nil {
		return nil, errRulesUnavailable
	}
	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pricing rules")
	}
	if rules == nil {
		rules = []models.PricingRule{}
	}
	return rules, nil
}

// ApplicableRules previews which active rules would apply to metadata.
func (s *Service) ApplicableRules(ctx context.Context, metadata map[string]any) []models.PricingRule {
	rules := s.engine.GetApplicableRules(ctx, metadata)
	if rules == nil {
		rules = []models.PricingRule{}
	}
	return rules
}
