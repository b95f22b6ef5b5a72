package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surety/internal/platform/middleware"
	redisclient "surety/internal/platform/redis"
	policyhandler "surety/internal/policy/handler"
	pricinghandler "surety/internal/pricing/handler"
	"surety/internal/settlement"
	"surety/pkg/platform/httputil"
)

const healthTimeout = 2 * time.Second

type routes struct {
	policies    policyhandler.Service
	pricing     pricinghandler.Service
	settlements settlement.StatusReader
	health      http.Handler
}

func newRouter(log *slog.Logger, r routes) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Actor,
		middleware.RequestTime,
		middleware.Logger(log),
	)

	mux.Method(http.MethodGet, "/health", r.health)
	mux.Method(http.MethodGet, "/metrics", promhttp.Handler())

	policyhandler.New(r.policies, log).Register(mux)
	pricinghandler.New(r.pricing, log).Register(mux)
	settlement.NewHandler(r.settlements, log).Register(mux)
	return mux
}

type healthHandler struct {
	db    *sql.DB
	redis *redisclient.Client
}

func newHealthHandler(db *sql.DB, rdb *redisclient.Client) *healthHandler {
	return &healthHandler{db: db, redis: rdb}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"postgres": "ok", "redis": "disabled"}
	if err := h.db.PingContext(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": checks})
}
