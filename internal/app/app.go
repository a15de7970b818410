package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Sachi-35/crop-yield-prediction/internal/config"
	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
	customMiddleware "github.com/Sachi-35/crop-yield-prediction/internal/middleware"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/services"
	handlers "github.com/Sachi-35/crop-yield-prediction/internal/transport/http"
)

// Background work settings
const (
	jobWorkers             = 1
	jobQueueStopTimeout    = 30 * time.Second
	runtimeMetricsInterval = 15 * time.Second
)

// Version is the reported build version, overridable with -ldflags
var Version = config.AppVersion

// Application represents the web server and everything it owns
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Manager          *operations.Manager
	JobQueue         *operations.JobQueue
	DataService      *services.DataService
	OperationService *services.OperationService
	HealthService    *services.HealthService
	RuntimeMetrics   *infrastructure.RuntimeMetrics
	ErrorHandler     *apierrors.ErrorHandler
	Router           *chi.Mux
	Server           *http.Server

	bootstrap      *Bootstrap
	stopBackground context.CancelFunc
}

// NewApplication wires every component from cfg
func NewApplication(cfg *config.Config) (*Application, error) {
	b, err := NewBootstrap(cfg)
	if err != nil {
		return nil, err
	}

	b.Logger.Info("application_starting",
		slog.String("name", config.AppName),
		slog.String("version", Version))

	app := &Application{
		Config:        cfg,
		Paths:         b.Paths,
		Logger:        b.Logger,
		OTelProviders: b.Providers,
		ErrorHandler:  apierrors.NewErrorHandler(b.Logger, false),
		bootstrap:     b,
	}

	if err := app.initializeServices(); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// initializeServices builds the pipeline and the services on top of it
func (a *Application) initializeServices() error {
	manager, err := a.bootstrap.NewPipeline(PipelineOptions{})
	if err != nil {
		return err
	}
	a.Manager = manager

	a.DataService = services.NewDataService(a.Paths.MasterTablePath(), a.Logger)
	a.JobQueue = operations.NewJobQueue(jobWorkers, operations.NewMemoryJobStore(), manager, a.Logger)
	a.OperationService = services.NewOperationService(manager, a.JobQueue, a.DataService, a.Logger)
	a.JobQueue.OnComplete = a.OperationService.OnJobComplete

	runtimeMetrics, err := infrastructure.NewRuntimeMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create runtime metrics: %w", err)
	}
	a.RuntimeMetrics = runtimeMetrics

	a.HealthService = services.NewHealthService(Version, map[string]string{
		"raw_dir":   a.Paths.RawDir,
		"final_dir": a.Paths.FinalDir,
	}, a.DataService, runtimeMetrics, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → Logger → Recoverer → OTel → headers
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.bootstrap.Metrics).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(a.getCORSConfig()))

	if rl := a.Config.Server.RateLimit; rl.Enabled {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrorHandler).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/readyz", healthHandler.ReadinessCheck)
	r.Method(http.MethodGet, "/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))

	a.setupAPIRoutes(r)
	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))
		r.Use(customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler).ValidateRequest)

		// Catalog lookups are cheap and get the read timeout
		dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, a.ErrorHandler)
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout))
			r.Get("/states", dataHandler.GetStates)
			r.Get("/crops", dataHandler.GetCrops)
		})

		// Pipeline runs are bounded only by the server write timeout
		r.Mount("/pipeline", handlers.NewOperationsHandler(a.OperationService, a.Logger, a.ErrorHandler).Routes())
	})
}

// getCORSConfig returns the CORS settings for the API
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Location"},
		MaxAge:         300,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground loads the catalog and starts the job queue and the
// runtime metrics collector. A missing master table is not fatal: the
// catalog endpoints answer 503 until a run builds it.
func (a *Application) StartBackground(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBackground = cancel

	if err := a.DataService.Load(ctx); err != nil {
		a.Logger.WarnContext(ctx, "catalog_unavailable_at_startup",
			slog.String("path", a.Paths.MasterTablePath()),
			slog.String("error", err.Error()))
	}

	a.JobQueue.Start(bgCtx)
	go a.RuntimeMetrics.Run(bgCtx, runtimeMetricsInterval)
}

// Start starts background work and the HTTP server. Server errors other
// than a clean shutdown are sent on the returned channel.
func (a *Application) Start(ctx context.Context) <-chan error {
	a.Logger.InfoContext(ctx, "server_starting",
		slog.String("address", a.Server.Addr),
		slog.String("version", Version),
		slog.String("level", a.Config.Logging.Level))

	a.StartBackground(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server_error", slog.String("error", err.Error()))
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "application_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.JobQueue != nil {
		if err := a.JobQueue.Stop(jobQueueStopTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "job_queue_stop_failed", slog.String("error", err.Error()))
		}
	}
	if a.stopBackground != nil {
		a.stopBackground()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "application_stopped")
	if err := a.bootstrap.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or the server fails, then shuts down
func (a *Application) Run(ctx context.Context) error {
	errCh := a.Start(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "shutdown_signal_received")
	case serveErr = <-errCh:
	}

	return errors.Join(serveErr, a.Stop(ctx))
}
