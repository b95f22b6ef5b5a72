package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"surety/internal/pricing/models"
	"surety/pkg/platform/sentinel"
)

type PricingStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *PricingStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestPricingStoreSuite(t *testing.T) {
	suite.Run(t, new(PricingStoreSuite))
}

func newPricing(policyID uuid.UUID, status models.Status, createdAt time.Time) *models.Pricing {
	return &models.Pricing{
		ID:           uuid.New(),
		PolicyID:     policyID,
		Status:       status,
		BasePremium:  decimal.NewFromInt(1000),
		TotalPremium: decimal.NewFromInt(1000),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func (s *PricingStoreSuite) TestCreationAndLookups() {
	policyID := uuid.New()
	now := time.Now()

	s.Run("finds by id and returns a copy", func() {
		p := newPricing(policyID, models.StatusDraft, now)
		s.Require().NoError(s.store.Create(s.ctx, p))

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		found.Status = models.StatusRejected

		again, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, again.Status)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds pricings for a policy newest first", func() {
		older := newPricing(policyID, models.StatusRejected, now.Add(-time.Hour))
		s.Require().NoError(s.store.Create(s.ctx, older))

		list, err := s.store.FindByPolicy(s.ctx, policyID)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(older.ID, list[1].ID)
	})

	s.Run("no active pricing yet", func() {
		_, err := s.store.FindActiveByPolicy(s.ctx, policyID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PricingStoreSuite) TestListPagination() {
	now := time.Now()
	policyID := uuid.New()
	for i := range 15 {
		status := models.StatusDraft
		if i%3 == 0 {
			status = models.StatusRejected
		}
		s.Require().NoError(s.store.Create(s.ctx, newPricing(policyID, status, now.Add(time.Duration(i)*time.Second))))
	}

	filter := models.ListFilter{Page: 2}
	filter.Normalize()
	items, total, err := s.store.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(15, total)
	s.Len(items, 5)

	filter = models.ListFilter{Status: models.StatusRejected}
	filter.Normalize()
	items, total, err = s.store.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Len(items, 5)

	filter = models.ListFilter{Page: 9}
	filter.Normalize()
	items, total, err = s.store.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(15, total)
	s.Empty(items)
}

func (s *PricingStoreSuite) TestExecute() {
	policyID := uuid.New()

	s.Run("validation failure leaves the pricing untouched", func() {
		p := newPricing(policyID, models.StatusDraft, time.Now())
		s.Require().NoError(s.store.Create(s.ctx, p))

		_, err := s.store.Execute(s.ctx, p.ID,
			func(*models.Pricing) error { return sentinel.ErrInvalidState },
			func(p *models.Pricing) { p.Status = models.StatusActive },
		)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, found.Status)
	})

	s.Run("second activation for the same policy conflicts", func() {
		a := newPricing(policyID, models.StatusDraft, time.Now())
		b := newPricing(policyID, models.StatusDraft, time.Now())
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.Require().NoError(s.store.Create(s.ctx, b))

		activate := func(p *models.Pricing) { p.Status = models.StatusActive }
		noop := func(*models.Pricing) error { return nil }

		_, err := s.store.Execute(s.ctx, a.ID, noop, activate)
		s.Require().NoError(err)
		_, err = s.store.Execute(s.ctx, b.ID, noop, activate)
		s.ErrorIs(err, sentinel.ErrConflict)

		active, err := s.store.FindActiveByPolicy(s.ctx, policyID)
		s.Require().NoError(err)
		s.Equal(a.ID, active.ID)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Execute(s.ctx, uuid.New(),
			func(*models.Pricing) error { return nil }, func(*models.Pricing) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PricingStoreSuite) TestDelete() {
	p := newPricing(uuid.New(), models.StatusDraft, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, p))
	s.Require().NoError(s.store.Delete(s.ctx, p.ID))
	s.ErrorIs(s.store.Delete(s.ctx, p.ID), sentinel.ErrNotFound)
}
