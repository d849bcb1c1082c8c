package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/internal/tracker"
	trackerhttp "github.com/tair/price-tracker/internal/tracker/delivery/http"
	"github.com/tair/price-tracker/pkg/logger"
	"github.com/tair/price-tracker/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.config

	logger.Logger.Info().
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Dur("check_interval", cfg.CheckInterval).
		Int("workers", cfg.Workers).
		Msg("Starting price tracker")

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(cfg.ServiceName, "1.0.0", cfg.JaegerEndpoint)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(ctx, tp); err != nil {
					logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
				}
			}()
		}
	}

	app, cleanup, err := opts.openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Scheduler.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start scheduler", err)
	}
	defer app.Scheduler.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTPPort).
			Str("metrics_endpoint", "/metrics").
			Bool("auth", cfg.JWTSecret != "").
			Msg("HTTP server started")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "HTTP server failed", err)
		}
	case <-ctx.Done():
	}

	logger.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shut down HTTP server")
	}
	return nil
}

func newRouter(app *tracker.App) http.Handler {
	router := mux.NewRouter()

	middlewareConfig := trackerhttp.DefaultMiddlewareConfig(app.Config.ServiceName)
	middlewareConfig.Tracing = app.Config.TracingEnabled
	middlewareConfig.AllowedOrigins = app.Config.CORSOrigins
	trackerhttp.RegisterMiddlewares(router, middlewareConfig)

	app.Handler.RegisterRoutes(router)

	if sqlDB, err := app.DB.DB(); err == nil {
		app.Handler.RegisterHealthCheck(router, sqlDB)
	}

	router.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	return trackerhttp.SetupCORS(middlewareConfig)(router)
}
