package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/dataporter/internal/app"
	"github.com/JonMunkholm/dataporter/internal/config"
	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/logging"
	"github.com/JonMunkholm/dataporter/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"default_format", cfg.Export.DefaultFormat,
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	limiter := core.NewLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWait)

	server := web.NewServer(web.Dependencies{
		Catalog:      a.Catalog,
		Coordinator:  a.Coordinator,
		Orchestrator: a.Orchestrator,
		Tracker:      a.Tracker,
		Limiter:      limiter,
		History:      historyLister(a),
		Metrics:      a.Metrics.Handler(),
		DB:           a.Pool,
	}, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	sweeper := core.NewSweepScheduler(a.Tracker, core.SweepConfig{
		Schedule: cfg.Correlation.SweepSchedule,
		MaxAge:   cfg.Correlation.MaxAge,
	})
	if err := sweeper.Start(jobCtx); err != nil {
		slog.Error("failed to start correlation sweeper", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running exports to finish (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

// historyLister avoids handing the server a typed nil when history is off.
func historyLister(a *app.App) web.HistoryLister {
	if a.History == nil {
		return nil
	}
	return a.History
}
