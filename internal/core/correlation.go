package core

// correlation.go tracks one context per top-level operation so log lines
// from execute, query, and write spans can be stitched together later.
//
// The store is owned by whoever constructs the Tracker and is passed into
// the coordinator and orchestrator. Each id has exactly one owner, which
// calls Begin and later Complete; the map itself is a sync.Map so
// operations on different ids never contend on a shared lock.

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// OperationType names the kind of operation a correlation id belongs to.
type OperationType string

const (
	OpExecute     OperationType = "execute"
	OpExportBatch OperationType = "export-batch"
	OpExportTable OperationType = "export-table"
	OpWorkflow    OperationType = "workflow"
)

// CorrelationStatus is the lifecycle state of a correlation context.
type CorrelationStatus string

const (
	CorrelationActive    CorrelationStatus = "active"
	CorrelationCompleted CorrelationStatus = "completed"
	CorrelationFailed    CorrelationStatus = "failed"
)

// CorrelationContext records one operation's lifetime.
type CorrelationContext struct {
	ID            string            `json:"id"`
	OperationType OperationType     `json:"operationType"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       *time.Time        `json:"endTime,omitempty"`
	Status        CorrelationStatus `json:"status"`
}

// Tracker is a concurrent store of correlation contexts.
type Tracker struct {
	contexts sync.Map // id -> CorrelationContext
	active   atomic.Int64
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Begin creates a new Active context and returns its id.
// Ids combine the operation type, a timestamp, and a random suffix.
func (t *Tracker) Begin(op OperationType) string {
	start := t.now()
	for {
		id := string(op) + "-" + start.UTC().Format("20060102T150405") + "-" + randomSuffix()
		cc := CorrelationContext{
			ID:            id,
			OperationType: op,
			StartTime:     start,
			Status:        CorrelationActive,
		}
		if _, loaded := t.contexts.LoadOrStore(id, cc); !loaded {
			t.active.Add(1)
			return id
		}
	}
}

// Complete stamps the end time and final status of a context.
// Unknown or already completed ids are ignored.
func (t *Tracker) Complete(id string, success bool) {
	v, ok := t.contexts.Load(id)
	if !ok {
		return
	}
	cc := v.(CorrelationContext)
	if cc.Status != CorrelationActive {
		return
	}

	end := t.now()
	cc.EndTime = &end
	cc.Status = CorrelationCompleted
	if !success {
		cc.Status = CorrelationFailed
	}

	if t.contexts.CompareAndSwap(id, v, cc) {
		t.active.Add(-1)
	}
}

// Sweep removes finished contexts that started more than maxAge ago.
// Active contexts are never removed. Returns the number removed.
func (t *Tracker) Sweep(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	removed := 0

	t.contexts.Range(func(key, value any) bool {
		cc := value.(CorrelationContext)
		if cc.Status == CorrelationActive || !cc.StartTime.Before(cutoff) {
			return true
		}
		if t.contexts.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})

	return removed
}

// Get returns a copy of one context.
func (t *Tracker) Get(id string) (CorrelationContext, bool) {
	v, ok := t.contexts.Load(id)
	if !ok {
		return CorrelationContext{}, false
	}
	return v.(CorrelationContext), true
}

// Snapshot returns a copy of every tracked context, oldest first.
func (t *Tracker) Snapshot() []CorrelationContext {
	var out []CorrelationContext
	t.contexts.Range(func(_, value any) bool {
		out = append(out, value.(CorrelationContext))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ActiveCount returns the number of contexts still in flight.
func (t *Tracker) ActiveCount() int {
	return int(t.active.Load())
}

// Len returns the number of tracked contexts in any state.
func (t *Tracker) Len() int {
	n := 0
	t.contexts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// loggerFrom returns the default logger enriched with correlation ids.
func loggerFrom(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}
	if parent := ParentCorrelationIDFromContext(ctx); parent != "" {
		logger = logger.With("parent_correlation_id", parent)
	}
	return logger
}
