package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSweepSchedulerRunOnce(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	tracker.now = func() time.Time { return now }

	id := tracker.Begin(OpExecute)
	tracker.Complete(id, true)
	now = now.Add(3 * time.Hour)

	s := NewSweepScheduler(tracker, SweepConfig{MaxAge: time.Hour})
	s.RunOnce()

	if got := tracker.Len(); got != 0 {
		t.Errorf("Len() after sweep = %d, want 0", got)
	}
}

func TestSweepSchedulerDefaults(t *testing.T) {
	s := NewSweepScheduler(NewTracker(), SweepConfig{})
	if s.cfg.Schedule != "@every 10m" {
		t.Errorf("Schedule = %q, want @every 10m", s.cfg.Schedule)
	}
	if s.cfg.MaxAge != time.Hour {
		t.Errorf("MaxAge = %v, want 1h", s.cfg.MaxAge)
	}
}

func TestSweepSchedulerInvalidSchedule(t *testing.T) {
	s := NewSweepScheduler(NewTracker(), SweepConfig{Schedule: "not a schedule"})
	err := s.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid sweep schedule") {
		t.Fatalf("Start() error = %v, want invalid sweep schedule", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not run after a failed start")
	}
}

func TestSweepSchedulerLifecycle(t *testing.T) {
	s := NewSweepScheduler(NewTracker(), SweepConfig{Schedule: "@every 1h"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if err := s.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v, want no-op", err)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatal("scheduler still running after ctx cancel")
	}

	s.Stop()
}

func TestSweepSchedulerRestartRegistersOnce(t *testing.T) {
	s := NewSweepScheduler(NewTracker(), SweepConfig{Schedule: "@every 1h"})

	for i := 0; i < 3; i++ {
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i+1, err)
		}
		if got := len(s.cron.Entries()); got != 1 {
			t.Errorf("after start #%d: cron entries = %d, want 1", i+1, got)
		}
		s.Stop()
		if s.IsRunning() {
			t.Fatalf("IsRunning() = true after Stop #%d", i+1)
		}
	}
}

func TestSweepSchedulerOldContextDoesNotStopNewRun(t *testing.T) {
	s := NewSweepScheduler(NewTracker(), SweepConfig{Schedule: "@every 1h"})

	first, cancelFirst := context.WithCancel(context.Background())
	if err := s.Start(first); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer s.Stop()

	cancelFirst()
	time.Sleep(50 * time.Millisecond)
	if !s.IsRunning() {
		t.Error("cancelling the first run's context stopped the second run")
	}
}
