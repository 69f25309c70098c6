// Package app assembles the configuration, logging, metrics, services and
// HTTP router into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"edupulse/internal/analytics"
	"edupulse/internal/config"
	"edupulse/internal/dataprocessing"
	"edupulse/internal/infrastructure"
	"edupulse/internal/middleware"
	"edupulse/internal/services"
	httptransport "edupulse/internal/transport/http"
	"edupulse/internal/websocket"
)

// Application holds the assembled server components
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	OTel    *infrastructure.OTelProviders
	Hub     *websocket.Hub
	Service *services.AnalyticsService
	Loader  *dataprocessing.Loader
	Router  chi.Router
	Server  *http.Server

	version string
}

// New builds the application from environment configuration
func New(version string) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	hub := websocket.NewHub(logger)

	service := services.NewAnalyticsService(analytics.Config{
		SegmentSeconds:     cfg.Analytics.SegmentSeconds,
		TopSelection:       cfg.Analytics.TopSelection,
		CalculationTimeout: cfg.Analytics.CalculationTimeout,
	}, logger, services.WithMetrics(otelProviders), services.WithNotifier(hub))

	app := &Application{
		Config:  cfg,
		Logger:  logger,
		OTel:    otelProviders,
		Hub:     hub,
		Service: service,
		Loader:  dataprocessing.NewLoader(cfg.Analytics.SegmentSeconds, logger),
		version: version,
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	if httpMetrics, err := middleware.NewHTTPMetrics(a.OTel); err != nil {
		a.Logger.Warn("request metrics disabled",
			slog.String("error", err.Error()))
	} else {
		r.Use(httpMetrics.Handler)
	}

	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		r.Mount("/health", httptransport.NewHealthHandler(a.Service, a.version).Routes())
		r.Mount("/analytics", httptransport.NewAnalyticsHandler(a.Service, a.Logger).Routes())
		r.Mount("/data", httptransport.NewDataHandler(a.Service, a.Loader, a.Logger).Routes())
	})

	if a.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTel.PrometheusHTTP)
	}

	r.Handle("/ws", websocket.NewHandler(a.Hub, a.Config.Security.AllowedOrigins, a.Logger))

	a.Router = r
}

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

// LoadInitialData ingests the configured event and course files when they
// exist. A missing event file is not fatal; the server starts empty and
// waits for a reload.
func (a *Application) LoadInitialData(ctx context.Context) error {
	eventsFile := a.Config.Paths.EventsFile
	if _, err := os.Stat(eventsFile); err != nil {
		a.Logger.WarnContext(ctx, "event file not found, starting without data",
			slog.String("file", eventsFile))
		return nil
	}

	events, err := a.Loader.LoadEvents(eventsFile)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}

	var chapters []analytics.ChapterVideo
	if _, err := os.Stat(a.Config.Paths.CourseFile); err == nil {
		chapters, err = a.Loader.LoadChapters(a.Config.Paths.CourseFile)
		if err != nil {
			return fmt.Errorf("load course structure: %w", err)
		}
	}

	return a.Service.ReplaceData(ctx, events, chapters)
}

// Start runs the server until the context is cancelled
func (a *Application) Start(ctx context.Context) error {
	a.Hub.Start()

	if err := a.LoadInitialData(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("version", a.version))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return a.Stop()
	}
}

// Stop gracefully shuts down the server and flushes telemetry
func (a *Application) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.Info("shutting down")

	var firstErr error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}

	a.Hub.Stop()

	if err := a.OTel.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("telemetry shutdown: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close log file: %w", err)
	}

	if firstErr != nil {
		return firstErr
	}
	a.Logger.Info("shutdown complete")
	return nil
}
