//go:build integration

package service_test

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
	"surety/internal/pricing/service"
	"surety/internal/pricing/store/history"
	"surety/internal/pricing/store/pricing"
	"surety/internal/pricing/store/rules"
	dErrors "surety/pkg/domain-errors"
	txcontext "surety/pkg/platform/tx"
	"surety/pkg/requestcontext"
	"surety/pkg/testutil/containers"
)

// =============================================================================
// Pricing Service Postgres Integration Suite
// =============================================================================
// Justification for integration tests: the single-active rule is enforced by
// a partial unique index, and approval must write the pricing, its history
// and the outbox row in one transaction. Only a real database shows both.

type PricingPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	service  *service.Service
	ctx      context.Context
	now      time.Time
}

func TestPricingPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PricingPostgresSuite))
}

func (s *PricingPostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.now = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	db := s.postgres.DB
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := rules.NewCachedSource(rules.NewPostgres(db), rules.NewMemoryCache(), time.Nanosecond, logger, nil)
	s.service = service.New(pricing.NewPostgres(db), history.NewPostgres(db), engine.New(source, logger),
		outbox.NewWriter(outbox.NewPostgresStore(db)),
		service.WithTx(txcontext.NewPostgresRunner(db, 5*time.Second)),
		service.WithLogger(logger),
		service.WithRuleAdmin(source),
	)
}

func (s *PricingPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "pricing_history", "pricings", "pricing_rules", "outbox"))
}

func (s *PricingPostgresSuite) draft(policyID uuid.UUID, base int64, details map[string]any) *models.Pricing {
	p, err := s.service.Create(s.ctx, &models.CreateRequest{
		PolicyID:       policyID,
		BasePremium:    decimal.NewFromInt(base),
		Taxes:          decimal.NewFromInt(25),
		CoverageAmount: decimal.NewFromInt(50000),
		PricingDetails: details,
	}, "underwriter")
	s.Require().NoError(err)
	return p
}

func (s *PricingPostgresSuite) outboxCount(destination string) int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(s.ctx,
		`SELECT COUNT(*) FROM outbox WHERE destination = $1`, destination).Scan(&n))
	return n
}

func (s *PricingPostgresSuite) TestRulesApplyFromPostgres() {
	pct := decimal.NewFromInt(10)
	_, err := s.service.CreateRule(s.ctx, &models.PricingRule{
		Name:                 "low risk discount",
		RuleType:             models.RuleTypeRiskLevel,
		Operator:             models.OperatorEquals,
		ConditionValue:       map[string]any{"riskLevel": "low"},
		AdjustmentType:       models.AdjustmentDiscount,
		AdjustmentPercentage: &pct,
		IsActive:             true,
		EffectiveDate:        s.now.Add(-time.Hour),
	}, "admin")
	s.Require().NoError(err)

	p := s.draft(uuid.New(), 1000, map[string]any{"riskLevel": "low"})
	s.True(decimal.NewFromInt(100).Equal(p.Discounts), p.Discounts.String())

	stored, err := s.service.FindOne(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(p.TotalPremium.Equal(stored.TotalPremium))
	s.NotEmpty(stored.PricingDetails["appliedRules"])
}

func (s *PricingPostgresSuite) TestApproveWritesOutbox() {
	p := s.draft(uuid.New(), 1000, nil)

	approved, err := s.service.Approve(s.ctx, p.ID, "underwriter", "ok")
	s.Require().NoError(err)
	s.Equal(models.StatusActive, approved.Status)
	s.Equal(1, s.outboxCount(messaging.QueuePricingResult))

	hist, err := s.service.GetHistory(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(hist, 2)
	s.Equal(models.HistoryApproved, hist[0].Action, "newest first")
}

// TestSingleActivePerPolicy verifies the partial unique index backs the rule
// when two drafts race to approval.
func (s *PricingPostgresSuite) TestSingleActivePerPolicy() {
	policyID := uuid.New()
	first := s.draft(policyID, 1000, nil)
	second := s.draft(policyID, 1100, nil)

	_, err := s.service.Approve(s.ctx, first.ID, "underwriter", "")
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, second.ID, "underwriter", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), err.Error())

	stored, err := s.service.FindOne(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status, "the failed approval rolled back")
	s.Equal(1, s.outboxCount(messaging.QueuePricingResult))

	_, err = s.service.Create(s.ctx, &models.CreateRequest{PolicyID: policyID, BasePremium: decimal.NewFromInt(1)}, "underwriter")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
