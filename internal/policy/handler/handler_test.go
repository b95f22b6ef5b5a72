package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"surety/internal/platform/middleware"
	"surety/internal/policy/handler/mocks"
	"surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/testutil"
)

type PolicyHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestPolicyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PolicyHandlerSuite))
}

func (s *PolicyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID, middleware.Actor)
	New(s.service, logger).Register(s.router)
}

func (s *PolicyHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set(middleware.HeaderActor, "agent-7")
	return testutil.DoRequest(s.router, req)
}

func samplePolicy(status models.Status) *models.Policy {
	return &models.Policy{
		ID:             uuid.New(),
		PolicyNumber:   "FIA202503000001",
		Type:           models.TypeFianca,
		Status:         status,
		PaymentStatus:  models.PaymentPending,
		CustomerID:     uuid.NewString(),
		PremiumAmount:  decimal.NewFromInt(1200),
		CoverageAmount: decimal.NewFromInt(100000),
		TotalPremium:   decimal.NewFromInt(1200),
		Version:        1,
		CreatedAt:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *PolicyHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeResponse[map[string]any](s.T(), rec)
}

func (s *PolicyHandlerSuite) TestCreate() {
	p := samplePolicy(models.StatusDraft)
	s.service.EXPECT().Create(gomock.Any(), gomock.Any(), "agent-7").
		DoAndReturn(func(_ any, req *models.CreateRequest, _ string) (*models.Policy, error) {
			s.Equal(models.TypeFianca, req.Type)
			s.True(decimal.NewFromInt(100000).Equal(req.CoverageAmount))
			return p, nil
		})

	rec := s.do(http.MethodPost, "/policies", map[string]any{
		"type":           "fianca",
		"customerId":     p.CustomerID,
		"coverageAmount": "100000",
		"premiumAmount":  "1200",
		"startDate":      "2025-03-01T00:00:00Z",
		"endDate":        "2026-03-01T00:00:00Z",
	})

	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	body := s.decode(rec)
	s.Equal("FIA202503000001", body["policyNumber"])
	s.Equal("draft", body["status"])
	s.Equal("1200", body["totalPremium"])
}

func (s *PolicyHandlerSuite) TestCreateRejectsUnknownFields() {
	rec := s.do(http.MethodPost, "/policies", map[string]any{"type": "fianca", "color": "red"})
	testutil.AssertError(s.T(), rec, http.StatusBadRequest, dErrors.CodeBadRequest)
}

func (s *PolicyHandlerSuite) TestFindAll() {
	s.Run("passes the filter through", func() {
		s.service.EXPECT().FindAll(gomock.Any(), models.ListFilter{
			Status:     models.StatusActive,
			Type:       models.TypeCapitalizacao,
			CustomerID: "c-9",
			Page:       2,
			Limit:      5,
		}).Return(&models.ListResult{Policies: []*models.Policy{}, Total: 6, Page: 2, Limit: 5}, nil)

		rec := s.do(http.MethodGet, "/policies?status=active&type=capitalizacao&customerId=c-9&page=2&limit=5", nil)
		s.Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal(float64(6), s.decode(rec)["total"])
	})

	s.Run("unknown status", func() {
		rec := s.do(http.MethodGet, "/policies?status=lapsed", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown type", func() {
		rec := s.do(http.MethodGet, "/policies?type=auto", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *PolicyHandlerSuite) TestLookups() {
	p := samplePolicy(models.StatusDraft)

	s.Run("by number is not shadowed by id", func() {
		s.service.EXPECT().FindByPolicyNumber(gomock.Any(), p.PolicyNumber).Return(p, nil)
		rec := s.do(http.MethodGet, "/policies/number/"+p.PolicyNumber, nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("not found", func() {
		s.service.EXPECT().FindOne(gomock.Any(), p.ID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "Policy not found"))
		rec := s.do(http.MethodGet, "/policies/"+p.ID.String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("Policy not found", s.decode(rec)["error_description"])
	})

	s.Run("malformed id", func() {
		rec := s.do(http.MethodGet, "/policies/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *PolicyHandlerSuite) TestTransitions() {
	p := samplePolicy(models.StatusDraft)

	s.Run("credit assessment conflict maps to 409", func() {
		s.service.EXPECT().InitiateCreditAssessment(gomock.Any(), p.ID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "Only draft policies can initiate credit assessment"))
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/credit-assessment", nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("Only draft policies can initiate credit assessment", s.decode(rec)["error_description"])
	})

	s.Run("payment without a body uses defaults", func() {
		active := samplePolicy(models.StatusActive)
		s.service.EXPECT().ProcessPayment(gomock.Any(), p.ID, &models.PaymentRequest{}).Return(active, nil)
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/payment", nil)
		s.Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("active", s.decode(rec)["status"])
	})

	s.Run("payment with a transaction id", func() {
		s.service.EXPECT().ProcessPayment(gomock.Any(), p.ID, &models.PaymentRequest{TransactionID: "TXN-1", PaymentMethod: "pix"}).
			Return(samplePolicy(models.StatusActive), nil)
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/payment",
			map[string]string{"transactionId": "TXN-1", "paymentMethod": "pix"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("cancel requires a reason", func() {
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/cancel", map[string]string{"reason": "  "})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("cancel", func() {
		s.service.EXPECT().CancelPolicy(gomock.Any(), p.ID, "customer request").
			Return(samplePolicy(models.StatusCancelled), nil)
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/cancel", map[string]string{"reason": "customer request"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("update", func() {
		s.service.EXPECT().Update(gomock.Any(), p.ID, gomock.Any()).
			DoAndReturn(func(_ any, _ uuid.UUID, req *models.UpdateRequest) (*models.Policy, error) {
				s.Require().NotNil(req.Status)
				s.Equal(models.StatusCancelled, *req.Status)
				return samplePolicy(models.StatusCancelled), nil
			})
		rec := s.do(http.MethodPatch, "/policies/"+p.ID.String(), map[string]string{"status": "cancelled"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("remove", func() {
		s.service.EXPECT().Remove(gomock.Any(), p.ID).Return(nil)
		rec := s.do(http.MethodDelete, "/policies/"+p.ID.String(), nil)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("events", func() {
		s.service.EXPECT().GetPolicyEvents(gomock.Any(), p.ID).Return([]models.AuditEvent{
			*models.NewAuditEvent(p.ID, models.EventPolicyCreated, "Policy created", nil, p.CreatedAt),
		}, nil)
		rec := s.do(http.MethodGet, "/policies/"+p.ID.String()+"/events", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.True(strings.Contains(rec.Body.String(), `"eventType":"policy_created"`))
	})
}

func (s *PolicyHandlerSuite) TestInternalErrorsAreOpaque() {
	id := uuid.New()
	s.service.EXPECT().FindOne(gomock.Any(), id).
		Return(nil, dErrors.Wrap(assertErr{}, dErrors.CodeInternal, "failed to load policy"))
	rec := s.do(http.MethodGet, "/policies/"+id.String(), nil)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "connection reset")
}

type assertErr struct{}

func (assertErr) Error() string { return "connection reset" }
