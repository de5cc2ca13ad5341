// Package app wires configuration, the database pool, the catalog, and the
// export pipeline into one set of collaborators shared by the server and
// the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/dataporter/internal/config"
	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/database"
	"github.com/JonMunkholm/dataporter/internal/metrics"
	"github.com/JonMunkholm/dataporter/internal/schema"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-lived pipeline collaborators.
type App struct {
	Config       *config.Config
	Pool         *pgxpool.Pool
	Catalog      *core.Catalog
	Source       *database.Postgres
	History      *database.History // nil when history recording is off
	Metrics      *metrics.Metrics
	Tracker      *core.Tracker
	Coordinator  *core.Coordinator
	Orchestrator *core.Orchestrator
}

// New connects to the database, loads the catalog, and builds the pipeline.
// The caller must call Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := schema.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded",
		"path", cfg.Catalog.Path,
		"tables", catalog.TableCount(),
		"procedures", len(catalog.Procedures()),
	)

	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Pool:    pool,
		Catalog: catalog,
		Source:  database.New(pool, cfg.Export.BatchSize),
		Metrics: metrics.New(),
		Tracker: core.NewTracker(),
	}
	a.Metrics.TrackCorrelations(a.Tracker)

	coordinatorOpts := []core.CoordinatorOption{core.WithRecorder(a.Metrics)}
	orchestratorOpts := []core.OrchestratorOption{core.WithWorkflowRecorder(a.Metrics)}

	if cfg.Database.RecordHistory {
		history := database.NewHistory(pool)
		if err := history.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.History = history
		coordinatorOpts = append(coordinatorOpts, core.WithBatchHistory(history))
		orchestratorOpts = append(orchestratorOpts, core.WithHistory(history))
	}

	a.Coordinator = core.NewCoordinator(a.Source, a.Tracker, coordinatorOpts...)
	a.Orchestrator = core.NewOrchestrator(a.Source, catalog, a.Coordinator, a.Tracker, orchestratorOpts...)

	return a, nil
}

// Connect opens and verifies a pool using the configured limits.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", databaseName(cfg.URL))
	return pool, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// databaseName extracts the database name from a connection URL for logging.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
