package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"prereg/internal/application/handler"
	appmetrics "prereg/internal/application/metrics"
	"prereg/internal/application/models"
	appservice "prereg/internal/application/service"
	jwttoken "prereg/internal/jwt_token"
	"prereg/internal/platform/config"
	"prereg/internal/platform/httpserver"
	"prereg/internal/platform/logger"
	platformmetrics "prereg/internal/platform/metrics"
	"prereg/pkg/platform/httputil"
	"prereg/pkg/platform/middleware/request"
	"prereg/pkg/platform/middleware/requesttime"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("prereg-application stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appStorage, err := buildStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer appStorage.Close()
	checks := []healthChecker{appStorage}

	purger, redisClient, err := buildPurger(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks = append(checks, redisClient)
	}

	publisher, auditWorker, kafkaClient, err := buildAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
	}

	machine, err := models.NewMachine(models.DefaultEdges())
	if err != nil {
		return err
	}
	svc := appservice.New(appStorage.store, appStorage.tx,
		appservice.WithLogger(log),
		appservice.WithMetrics(appmetrics.New(prometheus.DefaultRegisterer)),
		appservice.WithAuditPublisher(publisher),
		appservice.WithPurger(purger),
		appservice.WithMachine(machine),
		appservice.WithRequiredFields(cfg.Lifecycle.RequiredIdentityFields),
		appservice.WithTimeout(cfg.Lifecycle.StoreTimeout),
		appservice.WithMaxBatchSize(cfg.Lifecycle.MaxBatchSize),
	)

	resolver := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer))

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(request.Recovery(log))
	router.Use(request.Logger(log))
	router.Get("/health", healthHandler(checks...))
	if cfg.Server.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}
	handler.New(svc, resolver, log, platformmetrics.New(prometheus.DefaultRegisterer), cfg.Server.RequestTimeout).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	// The audit worker outlives the HTTP server so events emitted by
	// in-flight requests during shutdown are still flushed.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	if auditWorker != nil {
		g.Go(func() error { return auditWorker.Run(workerCtx) })
	}
	g.Go(func() error {
		log.Info("starting prereg-application", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopWorker()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down prereg-application")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type healthChecker interface {
	Health(ctx context.Context) error
}

func healthHandler(checks ...healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check.Health(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
