package core

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
)

// fakeSource is an in-memory Source for pipeline tests.
type fakeSource struct {
	mu sync.Mutex

	tables    map[string]*TabularResult
	counts    map[string]int64 // overrides len(rows) for RowCount
	queryErrs map[string]error
	countErrs map[string]error
	execErr   error
	affected  int64

	// onQuery runs before a table is returned, with the table name.
	onQuery func(table string)

	queried  []string
	executed []execCall
}

type execCall struct {
	name string
	args []any
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tables:    make(map[string]*TabularResult),
		counts:    make(map[string]int64),
		queryErrs: make(map[string]error),
		countErrs: make(map[string]error),
	}
}

// withTable registers a table with the given columns and rows.
func (f *fakeSource) withTable(name string, columns []string, rows ...[]any) *fakeSource {
	cols := make([]Column, len(columns))
	for i, c := range columns {
		cols[i] = Column{Name: c}
	}
	if rows == nil {
		rows = [][]any{}
	}
	f.tables[name] = &TabularResult{Columns: cols, Rows: rows}
	return f
}

func (f *fakeSource) ExecuteProcedure(ctx context.Context, name string, args []any) (int64, error) {
	f.mu.Lock()
	f.executed = append(f.executed, execCall{name: name, args: args})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.affected, nil
}

func (f *fakeSource) QueryTable(ctx context.Context, name string) (*TabularResult, error) {
	f.mu.Lock()
	f.queried = append(f.queried, name)
	f.mu.Unlock()

	if f.onQuery != nil {
		f.onQuery(name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.queryErrs[name]; err != nil {
		return nil, err
	}
	t, ok := f.tables[name]
	if !ok {
		return nil, errors.New(`relation "` + name + `" does not exist`)
	}
	// Copy so Release on the result does not empty the fixture.
	return &TabularResult{Columns: t.Columns, Rows: t.Rows}, nil
}

func (f *fakeSource) RowCount(ctx context.Context, name string) (int64, error) {
	if err := f.countErrs[name]; err != nil {
		return 0, err
	}
	if n, ok := f.counts[name]; ok {
		return n, nil
	}
	if t, ok := f.tables[name]; ok {
		return int64(len(t.Rows)), nil
	}
	return 0, errors.New(`relation "` + name + `" does not exist`)
}

func (f *fakeSource) queriedTables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

// captureRecorder collects observations and can run a hook per export.
type captureRecorder struct {
	mu         sync.Mutex
	exports    []ExportOutcome
	executions []ExecutionOutcome
	workflows  []WorkflowOutcome
	onExport   func(ExportOutcome)
}

func (r *captureRecorder) ObserveExport(o ExportOutcome) {
	r.mu.Lock()
	r.exports = append(r.exports, o)
	r.mu.Unlock()
	if r.onExport != nil {
		r.onExport(o)
	}
}

func (r *captureRecorder) ObserveExecution(_ string, o ExecutionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, o)
}

func (r *captureRecorder) ObserveWorkflow(o WorkflowOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows = append(r.workflows, o)
}

// cancelAfterCtx reports Canceled from Err once its budget of calls is spent.
type cancelAfterCtx struct {
	context.Context
	remaining int
}

func (c *cancelAfterCtx) Err() error {
	if c.remaining <= 0 {
		return context.Canceled
	}
	c.remaining--
	return nil
}

// assertAllFinished checks that the tracker holds want contexts and that
// every one of them has been completed.
func assertAllFinished(t *testing.T, tracker *Tracker, want int) {
	t.Helper()
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d, want 0", got)
	}
	snap := tracker.Snapshot()
	if len(snap) != want {
		t.Errorf("tracked contexts = %d, want %d", len(snap), want)
	}
	for _, cc := range snap {
		if cc.Status != CorrelationCompleted && cc.Status != CorrelationFailed {
			t.Errorf("context %s (%s) status = %q, want completed or failed", cc.ID, cc.OperationType, cc.Status)
		}
		if cc.EndTime == nil {
			t.Errorf("context %s has no end time", cc.ID)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
