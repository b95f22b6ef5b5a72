package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"surety/internal/messaging"
	"surety/internal/outbox"
	"surety/internal/platform/metrics"
	"surety/internal/policy/models"
	policyservice "surety/internal/policy/service"
	"surety/internal/policy/store/event"
	"surety/internal/policy/store/policy"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/sentinel"
	"surety/pkg/requestcontext"
)

// =============================================================================
// Settlement Consumer Test Suite
// =============================================================================
// Justification for unit tests: at-least-once delivery means the same
// confirmation arrives more than once; the policy must be activated once and
// the echo of our own notification must be absorbed.

type countingPayments struct {
	*policyservice.Service
	calls atomic.Int32
	fail  error
}

func (c *countingPayments) ProcessPayment(ctx context.Context, id uuid.UUID, req *models.PaymentRequest) (*models.Policy, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Service.ProcessPayment(ctx, id, req)
}

type countingBank struct {
	LocalBank
	calls atomic.Int32
}

func (b *countingBank) Settle(ctx context.Context, order *messaging.OrderPaid) (string, error) {
	b.calls.Add(1)
	return b.LocalBank.Settle(ctx, order)
}

type SettlementSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	markers  *MemoryMarkers
	payments *countingPayments
	bank     *countingBank
	policies *policyservice.Service
	metrics  *metrics.Metrics
	consumer *Consumer
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.policies = policyservice.New(policy.NewInMemory(), event.NewInMemory(),
		outbox.NewWriter(outbox.NewInMemoryStore()), policyservice.WithLogger(logger))
	s.payments = &countingPayments{Service: s.policies}
	s.markers = NewMemoryMarkers()
	s.markers.now = func() time.Time { return s.now }
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.bank = &countingBank{}
	s.consumer = NewConsumer(s.markers, s.payments,
		WithLogger(logger), WithMetrics(s.metrics), WithBank(s.bank))
}

func (s *SettlementSuite) pendingPolicy() *models.Policy {
	p, err := s.policies.Create(s.ctx, &models.CreateRequest{
		Type:           models.TypeCapitalizacao,
		CustomerID:     uuid.NewString(),
		CoverageAmount: decimal.NewFromInt(20000),
		PremiumAmount:  decimal.NewFromInt(300),
		StartDate:      s.now,
		EndDate:        s.now.AddDate(1, 0, 0),
	}, "agent")
	s.Require().NoError(err)
	_, err = s.policies.InitiateCreditAssessment(s.ctx, p.ID)
	s.Require().NoError(err)
	_, err = s.policies.CompleteCreditAssessment(s.ctx, p.ID, map[string]any{"riskLevel": "low"})
	s.Require().NoError(err)
	p, err = s.policies.CompletePricing(s.ctx, p.ID, models.PricingResult{
		PricingID:    uuid.New(),
		BasePremium:  decimal.NewFromInt(300),
		TotalPremium: decimal.NewFromInt(330),
	})
	s.Require().NoError(err)
	return p
}

func (s *SettlementSuite) orderPaid(p *models.Policy, txID string) messaging.Envelope {
	return messaging.NewEnvelope(&messaging.OrderPaid{
		PolicyID:      p.ID,
		PolicyNumber:  p.PolicyNumber,
		CustomerID:    p.CustomerID,
		PremiumAmount: p.TotalPremium,
		TransactionID: txID,
		PaymentMethod: "pix",
		PaymentStatus: "paid",
		Timestamp:     s.now,
	}, s.now, p.ID.String())
}

func (s *SettlementSuite) TestProcessesPendingPayment() {
	p := s.pendingPolicy()

	s.Require().NoError(s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-A")))

	active, err := s.policies.FindOne(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, active.Status)
	s.Equal("TXN-A", active.TransactionID())

	m, err := s.consumer.GetPaymentStatus(s.ctx, "TXN-A")
	s.Require().NoError(err)
	s.Equal(StateProcessed, m.State)
	s.Equal(p.PolicyNumber, m.PolicyNumber)
	s.Equal(s.now, *m.ProcessedAt)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SettlementOutcomes.WithLabelValues("processed")))
	s.Equal(int32(1), s.bank.calls.Load())
}

func (s *SettlementSuite) TestDuplicateDelivery() {
	p := s.pendingPolicy()
	env := s.orderPaid(p, "TXN-B")

	s.Require().NoError(s.consumer.Handle(s.ctx, env))
	s.Require().NoError(s.consumer.Handle(s.ctx, env))

	s.Equal(int32(1), s.payments.calls.Load())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SettlementOutcomes.WithLabelValues("duplicate")))
}

func (s *SettlementSuite) TestConcurrentDuplicates() {
	p := s.pendingPolicy()
	env := s.orderPaid(p, "TXN-C")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.consumer.Handle(s.ctx, env)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), s.payments.calls.Load())
}

func (s *SettlementSuite) TestEchoOfOwnNotification() {
	p := s.pendingPolicy()
	_, err := s.policies.ProcessPayment(s.ctx, p.ID, &models.PaymentRequest{TransactionID: "TXN-D"})
	s.Require().NoError(err)

	s.Require().NoError(s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-D")))

	s.Equal(int32(0), s.payments.calls.Load())
	m, err := s.consumer.GetPaymentStatus(s.ctx, "TXN-D")
	s.Require().NoError(err)
	s.Equal(StateProcessed, m.State)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SettlementOutcomes.WithLabelValues("echo")))
}

func (s *SettlementSuite) TestFailureReleasesClaim() {
	p := s.pendingPolicy()
	s.payments.fail = errors.New("database unavailable")

	err := s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-E"))
	s.Require().Error(err)
	_, err = s.consumer.GetPaymentStatus(s.ctx, "TXN-E")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "claim is released")

	s.payments.fail = nil
	s.Require().NoError(s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-E")), "redelivery retries")
	s.Equal(int32(2), s.payments.calls.Load())
}

func (s *SettlementSuite) TestConflictingTransactionIsRejected() {
	p := s.pendingPolicy()
	_, err := s.policies.ProcessPayment(s.ctx, p.ID, &models.PaymentRequest{TransactionID: "TXN-F"})
	s.Require().NoError(err)

	err = s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-OTHER"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(int32(0), s.bank.calls.Load(), "bank is not charged for a policy that cannot take payment")
	s.Equal(int32(0), s.payments.calls.Load())
}

func (s *SettlementSuite) TestUnexpectedPayload() {
	env := messaging.NewEnvelope(&messaging.PricingCompleted{PolicyID: uuid.New(), PricingID: uuid.New()}, s.now, "")
	err := s.consumer.Handle(s.ctx, env)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SettlementSuite) TestMarkersExpire() {
	_, ok, err := s.markers.Claim(s.ctx, "TXN-G", time.Hour)
	s.Require().NoError(err)
	s.True(ok)

	_, ok, err = s.markers.Claim(s.ctx, "TXN-G", time.Hour)
	s.Require().NoError(err)
	s.False(ok)

	s.now = s.now.Add(2 * time.Hour)
	_, ok, err = s.markers.Claim(s.ctx, "TXN-G", time.Hour)
	s.Require().NoError(err)
	s.True(ok, "expired markers can be claimed again")
}

func (s *SettlementSuite) TestExpiredMarkersAreSwept() {
	for i := range memorySweepEvery - 1 {
		_, ok, err := s.markers.Claim(s.ctx, uuid.NewString(), time.Minute)
		s.Require().NoError(err)
		s.Require().True(ok, "claim %d", i)
	}
	s.Equal(memorySweepEvery-1, s.markers.Len())

	s.now = s.now.Add(time.Hour)
	_, ok, err := s.markers.Claim(s.ctx, "TXN-LIVE", time.Hour)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, s.markers.Len(), "only the live claim is kept")
}

func (s *SettlementSuite) TestStaleClaimCannotTouchNewerClaim() {
	stale, ok, err := s.markers.Claim(s.ctx, "TXN-I", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.now = s.now.Add(2 * time.Minute)
	current, ok, err := s.markers.Claim(s.ctx, "TXN-I", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Run("release by the stale holder keeps the newer claim", func() {
		s.Require().NoError(s.markers.Release(s.ctx, stale))
		_, ok, err := s.markers.Claim(s.ctx, "TXN-I", time.Minute)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("complete by the stale holder is refused", func() {
		err := s.markers.Complete(s.ctx, stale, Marker{PolicyNumber: "POL-STALE"}, time.Hour)
		s.ErrorIs(err, sentinel.ErrConflict)
		m, err := s.markers.Get(s.ctx, "TXN-I")
		s.Require().NoError(err)
		s.Equal(StateProcessing, m.State)
	})

	s.Run("the current holder completes", func() {
		s.Require().NoError(s.markers.Complete(s.ctx, current, Marker{PolicyNumber: "POL-I"}, time.Hour))
		m, err := s.markers.Get(s.ctx, "TXN-I")
		s.Require().NoError(err)
		s.Equal(StateProcessed, m.State)
		s.Equal("POL-I", m.PolicyNumber)
	})
}

func (s *SettlementSuite) TestStatusHandler() {
	p := s.pendingPolicy()
	s.Require().NoError(s.consumer.Handle(s.ctx, s.orderPaid(p, "TXN-H")))

	r := chi.NewRouter()
	NewHandler(s.consumer, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/TXN-H/status", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"state":"processed"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/unknown/status", nil))
	s.Equal(http.StatusNotFound, rec.Code)
}
