package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"surety/internal/messaging"
	"surety/internal/outbox"
	"surety/internal/platform/config"
	"surety/internal/platform/httpserver"
	"surety/internal/platform/logger"
	"surety/internal/platform/metrics"
	"surety/internal/platform/postgres"
	redisclient "surety/internal/platform/redis"
	policyservice "surety/internal/policy/service"
	"surety/internal/policy/store/event"
	"surety/internal/policy/store/policy"
	"surety/internal/pricing/engine"
	pricingservice "surety/internal/pricing/service"
	"surety/internal/pricing/store/history"
	"surety/internal/pricing/store/pricing"
	"surety/internal/pricing/store/rules"
	"surety/internal/saga"
	"surety/internal/settlement"
	txcontext "surety/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and runs the HTTP server, the saga consumers and
// the outbox relay until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("surety stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("REDIS_URL not set, rule cache and payment markers are process-local")
	}

	m := metrics.New()
	bus, err := newBus(cfg, log, m)
	if err != nil {
		return err
	}
	defer bus.Close()

	txRunner := txcontext.NewPostgresRunner(db, cfg.Postgres.TxTimeout)
	outboxStore := outbox.NewPostgresStore(db)
	writer := outbox.NewWriter(outboxStore)

	policies := policyservice.New(policy.NewPostgres(db), event.NewPostgres(db), writer,
		policyservice.WithTx(txRunner),
		policyservice.WithLogger(log),
		policyservice.WithMetrics(m),
	)

	var (
		ruleCache rules.Cache            = rules.NewMemoryCache()
		markers   settlement.MarkerStore = settlement.NewMemoryMarkers()
	)
	if rdb != nil {
		ruleCache = rules.NewRedisCache(rdb.Client)
		markers = settlement.NewRedisMarkers(rdb.Client)
	}
	ruleSource := rules.NewCachedSource(rules.NewPostgres(db), ruleCache, cfg.Pricing.RuleCacheTTL, log, m)
	pricingSvc := pricingservice.New(pricing.NewPostgres(db), history.NewPostgres(db),
		engine.New(ruleSource, log, engine.WithMetrics(m)), writer,
		pricingservice.WithTx(txRunner),
		pricingservice.WithLogger(log),
		pricingservice.WithMetrics(m),
		pricingservice.WithRuleAdmin(ruleSource),
	)

	baseRate, err := decimal.NewFromString(cfg.Pricing.BaseRate)
	if err != nil {
		return fmt.Errorf("parse PRICING_BASE_RATE: %w", err)
	}
	worker := saga.NewPricingWorker(pricingSvc,
		saga.WithBaseRate(baseRate),
		saga.WithAutoApprove(cfg.Pricing.AutoApprove),
		saga.WithWorkerLogger(log),
	)
	settlements := settlement.NewConsumer(markers, policies,
		settlement.WithLogger(log),
		settlement.WithMetrics(m),
		settlement.WithMarkerTTL(cfg.Settlement.MarkerTTL),
	)

	consumers := saga.NewRouter(bus, log)
	saga.Register(consumers, policies, worker, settlements.Handle, log)
	relay := outbox.NewRelay(outboxStore, txRunner, bus, log, cfg.Outbox, outbox.WithMetrics(m))

	srv := httpserver.New(cfg.Server, newRouter(log, routes{
		policies:    policies,
		pricing:     pricingSvc,
		settlements: settlements,
		health:      newHealthHandler(db, rdb),
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(consumers.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(relay.Run(gctx))
	})
	g.Go(func() error {
		log.InfoContext(gctx, "starting surety", "addr", cfg.Server.Addr, "bus", cfg.Server.Bus)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newBus(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (messaging.Bus, error) {
	switch cfg.Server.Bus {
	case "memory":
		return messaging.NewMemoryBus(log, messaging.WithMemoryMetrics(m)), nil
	case "kafka":
		return messaging.NewKafkaBus(cfg.Kafka, log, m)
	default:
		return nil, fmt.Errorf("unknown MESSAGE_BUS %q", cfg.Server.Bus)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
