package settlement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "surety/pkg/domain-errors"
	"surety/pkg/platform/httputil"
	"surety/pkg/requestcontext"
)

// StatusReader looks up payment markers.
type StatusReader interface {
	GetPaymentStatus(ctx context.Context, transactionID string) (*Marker, error)
}

type Handler struct {
	status StatusReader
	logger *slog.Logger
}

func NewHandler(status StatusReader, logger *slog.Logger) *Handler {
	return &Handler{status: status, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/payments/{transactionId}/status", h.HandleStatus)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "transactionId")
	m, err := h.status.GetPaymentStatus(ctx, txID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to load payment status",
				"request_id", requestcontext.RequestID(ctx),
				"transaction_id", txID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}
