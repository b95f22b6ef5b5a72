package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"surety/internal/pricing/models"
	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/httputil"
	"surety/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the pricing operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest, createdBy string) (*models.Pricing, error)
	FindAll(ctx context.Context, filter models.ListFilter) (*models.Page[*models.Pricing], error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.Pricing, error)
	FindByPolicy(ctx context.Context, policyID uuid.UUID) ([]*models.Pricing, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateRequest, updatedBy string) (*models.Pricing, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Approve(ctx context.Context, id uuid.UUID, approvedBy, notes string) (*models.Pricing, error)
	Reject(ctx context.Context, id uuid.UUID, reason, rejectedBy string) (*models.Pricing, error)
	Recalculate(ctx context.Context, id uuid.UUID, recalculatedBy string) (*models.Pricing, error)
	Deactivate(ctx context.Context, id uuid.UUID, deactivatedBy string) (*models.Pricing, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]models.History, error)
	CreateRule(ctx context.Context, rule *models.PricingRule, createdBy string) (*models.PricingRule, error)
	ListActiveRules(ctx context.Context) ([]models.PricingRule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, rule *models.PricingRule) (*models.PricingRule, error)
	DeactivateRule(ctx context.Context, id uuid.UUID) (*models.PricingRule, error)
}

// Handler wires pricing endpoints to the pricing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the pricing routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/pricing", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleFindAll)
		r.Get("/policy/{policyId}", h.HandleFindByPolicy)

		r.Post("/rules", h.HandleCreateRule)
		r.Get("/rules", h.HandleListRules)
		r.Put("/rules/{id}", h.HandleUpdateRule)
		r.Post("/rules/{id}/deactivate", h.HandleDeactivateRule)

		r.Get("/{id}", h.HandleFindOne)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleRemove)
		r.Post("/{id}/approve", h.HandleApprove)
		r.Post("/{id}/reject", h.HandleReject)
		r.Post("/{id}/recalculate", h.HandleRecalculate)
		r.Post("/{id}/deactivate", h.HandleDeactivate)
		r.Get("/{id}/history", h.HandleHistory)
	})
}

// pricingResponse adds the derived figures to the stored pricing.
type pricingResponse struct {
	*models.Pricing
	NetPremium     decimal.Decimal `json:"netPremium"`
	CalculatedRate decimal.Decimal `json:"calculatedRate"`
}

func toResponse(p *models.Pricing) pricingResponse {
	return pricingResponse{Pricing: p, NetPremium: p.NetPremium(), CalculatedRate: p.CalculatedRate()}
}

func toResponses(ps []*models.Pricing) []pricingResponse {
	out := make([]pricingResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toResponse(p))
	}
	return out
}

type approveRequest struct {
	Notes string `json:"notes,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "create pricing", err)
		return
	}
	p, err := h.service.Create(ctx, &req, requestcontext.Actor(ctx))
	if err != nil {
		h.writeError(ctx, w, "create pricing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) HandleFindAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		Status: models.Status(q.Get("status")),
		Page:   atoiOrZero(q.Get("page")),
		Limit:  atoiOrZero(q.Get("limit")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown pricing status"))
		return
	}
	if raw := q.Get("policyId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid policyId"))
			return
		}
		filter.PolicyID = id
	}

	page, err := h.service.FindAll(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, "list pricings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Page[pricingResponse]{
		Data:  toResponses(page.Data),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

func (h *Handler) HandleFindOne(w http.ResponseWriter, r *http.Request) {
	h.withPricing(w, r, "load pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.FindOne(ctx, id)
	})
}

func (h *Handler) HandleFindByPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := uuid.Parse(chi.URLParam(r, "policyId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid policy id"))
		return
	}
	ps, err := h.service.FindByPolicy(ctx, policyID)
	if err != nil {
		h.writeError(ctx, w, "load pricings for policy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(ps))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withPricing(w, r, "update pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.Update(ctx, id, &req, requestcontext.Actor(ctx))
	})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(ctx, id); err != nil {
		h.writeError(ctx, w, "delete pricing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	h.withPricing(w, r, "approve pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.Approve(ctx, id, requestcontext.Actor(ctx), req.Notes)
	})
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "reason is required"))
		return
	}
	h.withPricing(w, r, "reject pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.Reject(ctx, id, req.Reason, requestcontext.Actor(ctx))
	})
}

func (h *Handler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	h.withPricing(w, r, "recalculate pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.Recalculate(ctx, id, requestcontext.Actor(ctx))
	})
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.withPricing(w, r, "deactivate pricing", func(ctx context.Context, id uuid.UUID) (*models.Pricing, error) {
		return h.service.Deactivate(ctx, id, requestcontext.Actor(ctx))
	})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GetHistory(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "load pricing history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var rule models.PricingRule
	if err := httputil.DecodeJSON(r, &rule); err != nil {
		h.writeError(ctx, w, "create pricing rule", err)
		return
	}
	created, err := h.service.CreateRule(ctx, &rule, requestcontext.Actor(ctx))
	if err != nil {
		h.writeError(ctx, w, "create pricing rule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rules, err := h.service.ListActiveRules(ctx)
	if err != nil {
		h.writeError(ctx, w, "list pricing rules", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

func (h *Handler) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var rule models.PricingRule
	if err := httputil.DecodeJSON(r, &rule); err != nil {
		h.writeError(ctx, w, "update pricing rule", err)
		return
	}
	updated, err := h.service.UpdateRule(ctx, id, &rule)
	if err != nil {
		h.writeError(ctx, w, "update pricing rule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rule, err := h.service.DeactivateRule(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "deactivate pricing rule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) withPricing(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, uuid.UUID) (*models.Pricing, error)) {
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
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
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
