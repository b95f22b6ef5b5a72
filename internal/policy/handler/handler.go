package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"surety/internal/policy/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/httputil"
	"surety/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the policy operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest, createdBy string) (*models.Policy, error)
	FindAll(ctx context.Context, filter models.ListFilter) (*models.ListResult, error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	FindByPolicyNumber(ctx context.Context, number string) (*models.Policy, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateRequest) (*models.Policy, error)
	Remove(ctx context.Context, id uuid.UUID) error
	InitiateCreditAssessment(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	ProcessPayment(ctx context.Context, id uuid.UUID, req *models.PaymentRequest) (*models.Policy, error)
	CancelPolicy(ctx context.Context, id uuid.UUID, reason string) (*models.Policy, error)
	GetPolicyEvents(ctx context.Context, id uuid.UUID) ([]models.AuditEvent, error)
}

// Handler wires the policy endpoints to the saga service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the policy routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleFindAll)
		r.Get("/number/{policyNumber}", h.HandleFindByNumber)
		r.Get("/{id}", h.HandleFindOne)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleRemove)
		r.Post("/{id}/credit-assessment", h.HandleInitiateCreditAssessment)
		r.Post("/{id}/payment", h.HandleProcessPayment)
		r.Post("/{id}/cancel", h.HandleCancel)
		r.Get("/{id}/events", h.HandleEvents)
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "create policy", err)
		return
	}
	p, err := h.service.Create(ctx, &req, requestcontext.Actor(ctx))
	if err != nil {
		h.writeError(ctx, w, "create policy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) HandleFindAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		Status:     models.Status(q.Get("status")),
		Type:       models.Type(q.Get("type")),
		CustomerID: q.Get("customerId"),
		AgentID:    q.Get("agentId"),
		Page:       atoiOrZero(q.Get("page")),
		Limit:      atoiOrZero(q.Get("limit")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown policy status"))
		return
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown policy type"))
		return
	}

	page, err := h.service.FindAll(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, "list policies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleFindOne(w http.ResponseWriter, r *http.Request) {
	h.withPolicy(w, r, "load policy", h.service.FindOne)
}

func (h *Handler) HandleFindByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := strings.TrimSpace(chi.URLParam(r, "policyNumber"))
	if number == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "policy number is required"))
		return
	}
	p, err := h.service.FindByPolicyNumber(ctx, number)
	if err != nil {
		h.writeError(ctx, w, "load policy by number", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withPolicy(w, r, "update policy", func(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
		return h.service.Update(ctx, id, &req)
	})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(ctx, id); err != nil {
		h.writeError(ctx, w, "delete policy", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleInitiateCreditAssessment(w http.ResponseWriter, r *http.Request) {
	h.withPolicy(w, r, "initiate credit assessment", h.service.InitiateCreditAssessment)
}

func (h *Handler) HandleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	h.withPolicy(w, r, "process payment", func(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
		return h.service.ProcessPayment(ctx, id, &req)
	})
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "reason is required"))
		return
	}
	h.withPolicy(w, r, "cancel policy", func(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
		return h.service.CancelPolicy(ctx, id, req.Reason)
	})
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	events, err := h.service.GetPolicyEvents(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "load policy events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) withPolicy(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, uuid.UUID) (*models.Policy, error)) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := fn(ctx, id)
	if err != nil {
		h.writeError(ctx, w, action, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "rejected "+action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
