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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kycflow/internal/platform/config"
	"kycflow/internal/platform/httpserver"
	"kycflow/internal/platform/kafka"
	"kycflow/internal/platform/logger"
	httpmetrics "kycflow/internal/platform/metrics"
	"kycflow/internal/platform/postgres"
	"kycflow/internal/platform/ratelimit"
	platformredis "kycflow/internal/platform/redis"
	"kycflow/internal/verification/catalog"
	"kycflow/internal/verification/engine"
	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/httpprovider"
	"kycflow/internal/verification/gateway/sandbox"
	"kycflow/internal/verification/gateway/statetoken"
	"kycflow/internal/verification/handler"
	"kycflow/internal/verification/metrics"
	"kycflow/internal/verification/models"
	"kycflow/internal/verification/outcomes"
	"kycflow/internal/verification/planner"
	"kycflow/internal/verification/service"
	storememory "kycflow/internal/verification/store/memory"
	storepostgres "kycflow/internal/verification/store/postgres"
	storeredis "kycflow/internal/verification/store/redis"
	"kycflow/internal/verification/tier"
	"kycflow/internal/verification/validator"
	"kycflow/pkg/platform/audit"
	auditpublisher "kycflow/pkg/platform/audit/publisher"
	auditmemory "kycflow/pkg/platform/audit/store/memory"
	auditpostgres "kycflow/pkg/platform/audit/store/postgres"
	"kycflow/pkg/platform/circuit"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
	"kycflow/pkg/platform/middleware/requesttime"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	signer := statetoken.New(cfg.Gateway.StateSigningKey, cfg.Gateway.StateTTL)
	router, err := buildGateways(cfg.Gateway, signer, log)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	eng := engine.New(
		tier.New(tier.Policy{DefaultThreshold: cfg.Workflow.DefaultThreshold}),
		planner.New(cat),
		cat,
		validator.New(),
		router,
		engine.WithPolicy(engine.Policy{
			MaxRetries:            cfg.Workflow.MaxRetries,
			ManualReviewThreshold: cfg.Workflow.ManualReviewThreshold,
			IdleTimeout:           cfg.Workflow.IdleTimeout,
			MaxWait:               cfg.Workflow.MaxWait,
		}),
		engine.WithLogger(log),
	)

	auditLog := auditpublisher.NewPublisher(infra.auditStore,
		auditpublisher.WithAsyncBuffer(1024),
		auditpublisher.WithLogger(log),
	)
	defer auditLog.Close()

	svc := service.New(eng, infra.sessions, cat,
		service.WithLogger(log),
		service.WithAuditPublisher(auditLog),
		service.WithOutcomePublisher(infra.outcomes),
		service.WithMetrics(metrics.New()),
	)

	r := chi.NewRouter()
	r.Use(metadata.RequestMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(httpmetrics.New(prometheus.DefaultRegisterer).Middleware)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", infra.health)

	limiter := ratelimit.New(infra.limits, log, ratelimit.WithDisabled(!cfg.Limits.Enabled))
	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit(ratelimit.Class{Name: "api", Limit: cfg.Limits.APIPerWindow, Window: cfg.Limits.Window}))
		handler.New(svc, signer, log,
			handler.WithStartLimit(limiter.Limit(ratelimit.Class{Name: "start", Limit: cfg.Limits.StartPerWindow, Window: cfg.Limits.Window})),
		).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	sweeper := service.NewSweeper(svc, cfg.Workflow.SweepInterval, 100, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting kycflow", "addr", cfg.Server.Addr, "store", cfg.Store, "gateway", cfg.Gateway.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
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

type infra struct {
	sessions   service.SessionStore
	auditStore audit.Store
	outcomes   service.OutcomePublisher
	limits     ratelimit.Store
	pinger     func(context.Context) error
	closers    []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func (i *infra) health(w http.ResponseWriter, r *http.Request) {
	if i.pinger != nil {
		if err := i.pinger(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{
		auditStore: auditmemory.NewInMemoryStore(),
		limits:     ratelimit.NewInMemoryStore(),
	}

	switch cfg.Store {
	case config.StoreRedis:
		rc, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		in.sessions = storeredis.New(rc.Client)
		in.limits = ratelimit.NewRedisStore(rc.Client)
		in.pinger = rc.Health
		in.closers = append(in.closers, func() { _ = rc.Close() })
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			_ = db.Close()
			return nil, err
		}
		in.sessions = storepostgres.New(db)
		in.auditStore = auditpostgres.New(db)
		in.pinger = db.PingContext
		in.closers = append(in.closers, func() { _ = db.Close() })
	default:
		in.sessions = storememory.New()
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		in.close()
		return nil, err
	}
	if producer == nil {
		log.Warn("no kafka brokers configured, outcomes are only logged")
		in.outcomes = outcomes.NewLogPublisher(log)
		return in, nil
	}
	if err := kafka.EnsureTopic(ctx, producer, cfg.Kafka.Topic, 3, 1); err != nil {
		producer.Close()
		in.close()
		return nil, err
	}
	in.outcomes = outcomes.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	in.closers = append(in.closers, producer.Close)
	return in, nil
}

// buildGateways registers one backend per verifier kind, each behind a
// circuit breaker and a terminal-status cache.
func buildGateways(cfg config.GatewayConfig, signer *statetoken.Signer, log *slog.Logger) (*gateway.Router, error) {
	backends := map[models.VerifierKind]gateway.Gateway{}
	switch cfg.Mode {
	case config.GatewayHTTP:
		backends[models.VerifierDocument] = httpprovider.New("document-vendor", models.VerifierDocument,
			cfg.DocumentURL, cfg.APIKey, cfg.RequestTimeout, httpprovider.WithReturn(signer, cfg.ReturnURL))
		backends[models.VerifierBiometric] = httpprovider.New("biometric-vendor", models.VerifierBiometric,
			cfg.BiometricURL, cfg.APIKey, cfg.RequestTimeout, httpprovider.WithReturn(signer, cfg.ReturnURL))
	default:
		backends[models.VerifierDocument] = sandbox.NewDocument(
			sandbox.WithDefaultOutcome(sandbox.Approve(92, 1)),
			sandbox.WithStateSigner(signer, cfg.ReturnURL),
		)
		backends[models.VerifierBiometric] = sandbox.NewBiometric(
			sandbox.WithDefaultOutcome(sandbox.Approve(88, 1)),
			sandbox.WithStateSigner(signer, cfg.ReturnURL),
		)
	}

	router := gateway.NewRouter()
	for kind, backend := range backends {
		cb := circuit.New(string(kind),
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithCooldown(cfg.Cooldown),
		)
		wrapped := gateway.NewCached(gateway.NewBreaker(backend, cb, gateway.WithBreakerLogger(log)), cfg.StatusCacheTTL)
		if err := router.Register(kind, wrapped); err != nil {
			return nil, err
		}
	}
	return router, nil
}
