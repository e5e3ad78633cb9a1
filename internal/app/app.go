// Package app wires the web server: configuration, logging, telemetry,
// the service layer, and the HTTP router, plus graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ceapulse/internal/config"
	apperrors "ceapulse/internal/errors"
	"ceapulse/internal/exporter"
	"ceapulse/internal/infrastructure"
	"ceapulse/internal/middleware"
	"ceapulse/internal/registry"
	"ceapulse/internal/services"
	"ceapulse/internal/store"
	syncjob "ceapulse/internal/sync"
	transport "ceapulse/internal/transport/http"
)

// App is the assembled web application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	otel   *infrastructure.OTelProviders
	server *http.Server
}

// New assembles the application from configuration. The store client
// and sync orchestrator are wired only when store credentials are
// present; without them the server runs in the file-only mode with the
// movement and sync routes disabled.
func New(cfg *config.Config) (*App, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	errorHandler := apperrors.NewErrorHandler(logger, cfg.Logging.Level == "debug")

	dataService := services.NewDataService(exporter.NewReader(cfg.Paths.DataDir), logger)

	var movements transport.MovementSource
	var runner transport.SyncRunner
	if cfg.HasStoreCredentials() {
		storeClient, err := store.NewClient(cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		movements = storeClient

		registryClient := registry.NewClient(cfg.Sync.RegistryURL, cfg.Sync.PageSize,
			registry.WithLogger(logger),
			registry.WithRateLimit(cfg.Sync.RequestsPerSecond))

		metrics, err := infrastructure.NewSyncMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		runner = syncjob.NewOrchestrator(registryClient, storeClient, cfg.Sync, logger, metrics)
	} else {
		logger.Warn("store credentials absent, movement and sync routes disabled")
	}

	a := &App{cfg: cfg, logger: logger, otel: providers}
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.buildRouter(dataService, movements, runner, errorHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

func (a *App) buildRouter(dataService *services.DataService, movements transport.MovementSource, runner transport.SyncRunner, errorHandler *apperrors.ErrorHandler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	if a.cfg.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.cfg.Security.RateLimit.RPS,
			a.cfg.Security.RateLimit.Burst,
			a.logger)
		r.Use(limiter.Handler)
	}

	r.Mount("/api/health", transport.NewHealthHandler().Routes())
	r.Mount("/api/data", transport.NewDataHandler(dataService, movements, a.logger, errorHandler).Routes())

	if runner != nil {
		r.Route("/api/sync", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(a.cfg.Security.SyncAPIKey, a.logger))
			r.Mount("/", transport.NewSyncHandler(runner, a.logger, errorHandler).Routes())
		})
	}

	if a.otel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.otel.PrometheusHTTP)
	}

	r.NotFound(errorHandler.NotFound)
	return r
}

// Run starts the HTTP server and blocks until ctx is canceled, then
// shuts down gracefully within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	infrastructure.CloseLogFile()
	return nil
}
