package core

// scheduler.go runs the periodic correlation sweep.
//
// The pipeline never sweeps its own tracker; finished correlation contexts
// accumulate until this scheduler removes those older than MaxAge. The
// scheduler is long-running and context-aware for graceful shutdown.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepConfig holds configuration for the sweep scheduler.
type SweepConfig struct {
	Schedule string        // Cron expression or descriptor (default: "@every 10m")
	MaxAge   time.Duration // Finished contexts older than this are removed (default: 1h)
}

// SweepScheduler periodically calls Tracker.Sweep.
type SweepScheduler struct {
	tracker *Tracker
	cfg     SweepConfig
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewSweepScheduler creates a scheduler for tracker.
func NewSweepScheduler(tracker *Tracker, cfg SweepConfig) *SweepScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 10m"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	return &SweepScheduler{
		tracker: tracker,
		cfg:     cfg,
		logger:  slog.Default().With("component", "correlation.sweeper"),
	}
}

// Start schedules the sweep and returns immediately.
// The scheduler stops when ctx is cancelled.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Each start gets a fresh cron so a restart registers the sweep once.
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, s.RunOnce); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron = c
	s.cron.Start()
	s.running = true
	done := make(chan struct{})
	s.done = done

	s.logger.Info("correlation sweep scheduler started",
		"schedule", s.cfg.Schedule,
		"max_age", s.cfg.MaxAge.String(),
	)

	go func() {
		select {
		case <-ctx.Done():
			s.stop(done)
		case <-done:
		}
	}()

	return nil
}

// RunOnce performs a single sweep.
func (s *SweepScheduler) RunOnce() {
	start := time.Now()
	removed := s.tracker.Sweep(s.cfg.MaxAge)
	if removed > 0 {
		s.logger.Info("swept correlation contexts",
			"removed", removed,
			"remaining", s.tracker.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	s.logger.Debug("correlation sweep completed, nothing removed")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	s.stop(nil)
}

// stop ends the current run. A non-nil run only stops that run.
func (s *SweepScheduler) stop(run chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || (run != nil && run != s.done) {
		return
	}
	<-s.cron.Stop().Done()
	close(s.done)
	s.running = false
	s.logger.Info("correlation sweep scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *SweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
