package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"surety/internal/messaging"
	"surety/internal/outbox"
	"surety/internal/pricing/engine"
	"surety/internal/pricing/models"
	"surety/internal/pricing/store/history"
	"surety/internal/pricing/store/pricing"
	"surety/internal/pricing/store/rules"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/requestcontext"
)

// =============================================================================
// Pricing Service Test Suite
// =============================================================================
// Justification for unit tests: the lifecycle guards, the single-active rule
// and the outbox hand-off are service behaviour that no store enforces alone.

type PricingServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	rules   *rules.InMemory
	outbox  *outbox.InMemoryStore
	history *history.InMemory
	service *Service
}

func TestPricingServiceSuite(t *testing.T) {
	suite.Run(t, new(PricingServiceSuite))
}

func (s *PricingServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.rules = rules.NewInMemory()
	source := rules.NewCachedSource(s.rules, rules.NewMemoryCache(), time.Minute, logger, nil)
	s.outbox = outbox.NewInMemoryStore()
	s.history = history.NewInMemory()

	s.service = New(
		pricing.NewInMemory(),
		s.history,
		engine.New(source, logger),
		outbox.NewWriter(s.outbox),
		WithLogger(logger),
		WithRuleAdmin(source),
	)
}

func (s *PricingServiceSuite) addRule(name string, adj models.AdjustmentType, pct int64, cond map[string]any) {
	p := decimal.NewFromInt(pct)
	_, err := s.service.CreateRule(s.ctx, &models.PricingRule{
		Name:                 name,
		RuleType:             models.RuleTypeRiskLevel,
		Operator:             models.OperatorEquals,
		ConditionValue:       cond,
		AdjustmentType:       adj,
		AdjustmentPercentage: &p,
		IsActive:             true,
		EffectiveDate:        s.now.Add(-24 * time.Hour),
	}, "admin")
	s.Require().NoError(err)
}

func (s *PricingServiceSuite) createDraft(policyID uuid.UUID) *models.Pricing {
	p, err := s.service.Create(s.ctx, &models.CreateRequest{
		PolicyID:       policyID,
		BasePremium:    decimal.NewFromInt(1000),
		CoverageAmount: decimal.NewFromInt(50000),
		PricingDetails: map[string]any{"riskLevel": "low"},
	}, "tester")
	s.Require().NoError(err)
	return p
}

func (s *PricingServiceSuite) TestCreate() {
	s.addRule("low risk discount", models.AdjustmentDiscount, 10, map[string]any{"riskLevel": "low"})
	s.addRule("high risk tax", models.AdjustmentTax, 25, map[string]any{"riskLevel": "high"})

	s.Run("draft with rule contributions", func() {
		p := s.createDraft(uuid.New())
		s.Equal(models.StatusDraft, p.Status)
		s.True(decimal.NewFromInt(100).Equal(p.Discounts), p.Discounts.String())
		s.True(p.Taxes.IsZero())
		s.True(decimal.NewFromInt(1000).Equal(p.TotalPremium))
		s.Equal("tester", p.CreatedBy)

		entries, err := s.service.GetHistory(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(models.HistoryCreated, entries[0].Action)
	})

	s.Run("rejects invalid request", func() {
		_, err := s.service.Create(s.ctx, &models.CreateRequest{BasePremium: decimal.NewFromInt(1)}, "tester")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("conflicts while an active pricing exists", func() {
		policyID := uuid.New()
		p := s.createDraft(policyID)
		_, err := s.service.Approve(s.ctx, p.ID, "approver", "")
		s.Require().NoError(err)

		_, err = s.service.Create(s.ctx, &models.CreateRequest{
			PolicyID:    policyID,
			BasePremium: decimal.NewFromInt(500),
		}, "tester")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "Active pricing already exists for this policy")
	})
}

func (s *PricingServiceSuite) TestApprove() {
	policyID := uuid.New()
	p := s.createDraft(policyID)

	approved, err := s.service.Approve(s.ctx, p.ID, "system:pricing-engine", "auto")
	s.Require().NoError(err)
	s.Equal(models.StatusActive, approved.Status)
	s.Equal("system:pricing-engine", approved.ApprovedBy)
	s.Require().NotNil(approved.ApprovedAt)
	s.True(s.now.Equal(*approved.ApprovedAt))

	pending := s.outbox.Pending(messaging.QueuePricingResult)
	s.Require().Len(pending, 1)
	env, err := messaging.Decode(pending[0].Payload)
	s.Require().NoError(err)
	result, ok := env.Payload.(*messaging.PricingCompleted)
	s.Require().True(ok)
	s.Equal(policyID, result.PolicyID)
	s.Equal(p.ID, result.PricingID)
	s.NotContains(result.PricingDetails, inputComponentsKey)

	_, err = s.service.Approve(s.ctx, p.ID, "someone", "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "Only draft pricing can be approved")
	s.Len(s.outbox.Pending(messaging.QueuePricingResult), 1)
}

func (s *PricingServiceSuite) TestApproveSecondDraftForSamePolicy() {
	policyID := uuid.New()
	a := s.createDraft(policyID)
	b := s.createDraft(policyID)

	_, err := s.service.Approve(s.ctx, a.ID, "approver", "")
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, b.ID, "approver", "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	found, err := s.service.FindOne(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, found.Status)
}

func (s *PricingServiceSuite) TestRejectAndDeactivate() {
	s.Run("reject draft", func() {
		p := s.createDraft(uuid.New())
		rejected, err := s.service.Reject(s.ctx, p.ID, "premium too low", "reviewer")
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, rejected.Status)
		s.Equal("premium too low", rejected.RejectionReason)

		_, err = s.service.Reject(s.ctx, p.ID, "again", "reviewer")
		s.Contains(err.Error(), "Only draft pricing can be rejected")
	})

	s.Run("deactivate requires active", func() {
		p := s.createDraft(uuid.New())
		_, err := s.service.Deactivate(s.ctx, p.ID, "ops")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "Only active pricing can be deactivated")

		_, err = s.service.Approve(s.ctx, p.ID, "approver", "")
		s.Require().NoError(err)
		deactivated, err := s.service.Deactivate(s.ctx, p.ID, "ops")
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, deactivated.Status)
	})
}

func (s *PricingServiceSuite) TestUpdate() {
	s.addRule("low risk discount", models.AdjustmentDiscount, 10, map[string]any{"riskLevel": "low"})

	s.Run("premium change reruns the engine from the inputs", func() {
		p := s.createDraft(uuid.New())
		base := decimal.NewFromInt(2000)
		updated, err := s.service.Update(s.ctx, p.ID, &models.UpdateRequest{BasePremium: &base}, "editor")
		s.Require().NoError(err)
		s.True(decimal.NewFromInt(200).Equal(updated.Discounts), updated.Discounts.String())
		s.True(decimal.NewFromInt(2000).Equal(updated.TotalPremium))
		s.Equal("editor", updated.UpdatedBy)
	})

	s.Run("active pricing cannot be modified", func() {
		p := s.createDraft(uuid.New())
		_, err := s.service.Approve(s.ctx, p.ID, "approver", "")
		s.Require().NoError(err)

		notes := "tweak"
		_, err = s.service.Update(s.ctx, p.ID, &models.UpdateRequest{Notes: &notes}, "editor")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "Cannot modify active pricing")

		inactive := models.StatusInactive
		updated, err := s.service.Update(s.ctx, p.ID, &models.UpdateRequest{Status: &inactive}, "editor")
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, updated.Status)
	})

	s.Run("unknown pricing", func() {
		notes := "x"
		_, err := s.service.Update(s.ctx, uuid.New(), &models.UpdateRequest{Notes: &notes}, "editor")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PricingServiceSuite) TestRecalculateDoesNotAccumulate() {
	s.addRule("low risk discount", models.AdjustmentDiscount, 10, map[string]any{"riskLevel": "low"})
	p := s.createDraft(uuid.New())

	first, err := s.service.Recalculate(s.ctx, p.ID, "ops")
	s.Require().NoError(err)
	second, err := s.service.Recalculate(s.ctx, p.ID, "ops")
	s.Require().NoError(err)

	s.True(p.Discounts.Equal(first.Discounts))
	s.True(first.Discounts.Equal(second.Discounts), second.Discounts.String())
	s.True(first.TotalPremium.Equal(second.TotalPremium))

	entries, err := s.service.GetHistory(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(models.HistoryCalculated, entries[0].Action)
	s.Equal(models.HistoryCreated, entries[2].Action)
}

func (s *PricingServiceSuite) TestRemove() {
	p := s.createDraft(uuid.New())
	_, err := s.service.Approve(s.ctx, p.ID, "approver", "")
	s.Require().NoError(err)

	err = s.service.Remove(s.ctx, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "Cannot delete active pricing")

	draft := s.createDraft(uuid.New())
	s.Require().NoError(s.service.Remove(s.ctx, draft.ID))
	_, err = s.service.FindOne(s.ctx, draft.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(err.Error(), "Pricing not found")
}

func (s *PricingServiceSuite) TestFindAllAndByPolicy() {
	policyID := uuid.New()
	s.createDraft(policyID)
	s.createDraft(policyID)
	s.createDraft(uuid.New())

	page, err := s.service.FindAll(s.ctx, models.ListFilter{PolicyID: policyID})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Equal(1, page.Page)
	s.Equal(10, page.Limit)

	list, err := s.service.FindByPolicy(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *PricingServiceSuite) TestRuleAdministration() {
	s.addRule("low risk discount", models.AdjustmentDiscount, 10, map[string]any{"riskLevel": "low"})

	active, err := s.service.ListActiveRules(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)

	s.Len(s.service.ApplicableRules(s.ctx, map[string]any{"riskLevel": "low"}), 1)
	s.Empty(s.service.ApplicableRules(s.ctx, map[string]any{"riskLevel": "high"}))

	s.Run("update retargets the rule and keeps its identity", func() {
		patch := active[0]
		patch.ConditionValue = map[string]any{"riskLevel": "high"}
		patch.CreatedBy = "someone else"
		updated, err := s.service.UpdateRule(s.ctx, active[0].ID, &patch)
		s.Require().NoError(err)
		s.Equal(active[0].CreatedBy, updated.CreatedBy)
		s.Empty(s.service.ApplicableRules(s.ctx, map[string]any{"riskLevel": "low"}))
		s.Len(s.service.ApplicableRules(s.ctx, map[string]any{"riskLevel": "high"}), 1)

		invalid := patch
		invalid.Name = ""
		_, err = s.service.UpdateRule(s.ctx, active[0].ID, &invalid)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	_, err = s.service.DeactivateRule(s.ctx, active[0].ID)
	s.Require().NoError(err)
	s.Empty(s.service.ApplicableRules(s.ctx, map[string]any{"riskLevel": "high"}))

	_, err = s.service.DeactivateRule(s.ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
