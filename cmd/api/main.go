package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timmy/stylematch/internal/api"
	"github.com/timmy/stylematch/internal/api/handler"
	"github.com/timmy/stylematch/internal/app"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
)

func main() {
	// Initialize logger from LOG_* environment variables
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewNop()
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	application, err := app.New(ctx, cfg, m)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Remove old request workspaces in the background
	go application.Workspaces.Run(ctx, cfg.Workspace.SweepInterval)

	sources := make([]handler.BreakerSource, len(application.Sources))
	for i, s := range application.Sources {
		sources[i] = s
	}

	deps := api.RouterDeps{
		Matcher: application.Match,
		Files:   application.Workspaces,
		Sources: sources,
		Logger:  appLogger,
		Server:  cfg.Server,
		Metrics: cfg.Metrics,
	}
	if application.Sidecars != nil {
		deps.Sidecars = application.Sidecars
	}
	router := api.SetupRouter(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout; matches in flight may take a while
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
