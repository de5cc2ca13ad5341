package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/dataporter/internal/config"
	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves fixed tables from memory.
type stubSource struct {
	tables  map[string]*core.TabularResult
	counts  map[string]int64
	execErr error
}

func newStubSource() *stubSource {
	return &stubSource{
		tables: map[string]*core.TabularResult{
			"orders": {
				Columns: []core.Column{{Name: "id"}, {Name: "total"}},
				Rows:    [][]any{{int64(1), 9.5}, {int64(2), 3.25}},
			},
			"lines": {
				Columns: []core.Column{{Name: "id"}},
				Rows:    [][]any{{int64(10)}},
			},
		},
		counts: map[string]int64{},
	}
}

func (s *stubSource) ExecuteProcedure(ctx context.Context, _ string, _ []any) (int64, error) {
	if s.execErr != nil {
		return 0, s.execErr
	}
	return 5, ctx.Err()
}

func (s *stubSource) QueryTable(_ context.Context, name string) (*core.TabularResult, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.New(`relation "` + name + `" does not exist`)
	}
	return &core.TabularResult{Columns: t.Columns, Rows: t.Rows}, nil
}

func (s *stubSource) RowCount(_ context.Context, name string) (int64, error) {
	if n, ok := s.counts[name]; ok {
		return n, nil
	}
	return int64(len(s.tables[name].Rows)), nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	src     *stubSource
	cfg     *config.Config
	deps    Dependencies
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*testEnv)) *testEnv {
	t.Helper()

	catalog := core.NewCatalog()
	require.NoError(t, catalog.RegisterTable(core.TableSpec{Name: "orders", DisplayName: "Orders"}))
	require.NoError(t, catalog.RegisterTable(core.TableSpec{Name: "lines"}))
	require.NoError(t, catalog.RegisterProcedure(core.ProcedureSpec{
		Name: "load_period",
		Parameters: []core.ParamSpec{
			{Name: "period_start", DeclaredType: "date", Required: true},
			{Name: "period_end", DeclaredType: "date", Required: true},
		},
		OutputTables: []string{"orders", "lines"},
	}))

	src := newStubSource()
	tracker := core.NewTracker()
	coordinator := core.NewCoordinator(src, tracker)

	cfg := &config.Config{}
	cfg.Export.OutputDir = t.TempDir()
	cfg.Export.ImportDir = t.TempDir()
	cfg.Export.DefaultFormat = "csv"
	cfg.Export.Timeout = time.Minute

	env := &testEnv{
		src: src,
		cfg: cfg,
		deps: Dependencies{
			Catalog:      catalog,
			Coordinator:  coordinator,
			Orchestrator: core.NewOrchestrator(src, catalog, coordinator, tracker),
			Tracker:      tracker,
		},
	}
	for _, m := range mutate {
		m(env)
	}
	env.handler = NewServer(env.deps, env.cfg).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListTables(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tables := decode[[]core.TableSpec](t, rec)
	require.Len(t, tables, 2)
	assert.Equal(t, "lines", tables[0].Name)
	assert.Equal(t, "Orders", tables[1].DisplayName)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListProcedures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/procedures", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	procs := decode[[]core.ProcedureSpec](t, rec)
	require.Len(t, procs, 1)
	assert.Equal(t, []string{"orders", "lines"}, procs[0].OutputTables)
}

func TestRunWorkflow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/workflows", map[string]any{
		"procedure":   "load_period",
		"periodStart": "20250101",
		"periodEnd":   "20250131",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[core.WorkflowOutcome](t, rec)
	assert.True(t, out.Success)
	require.Len(t, out.Exports, 2, "omitted tables default to the procedure's outputs")
	assert.Equal(t, "EX_JAN25_01-31_1.csv", out.Exports[0].FileName)
	assert.Equal(t, "EX_JAN25_01-31_2.csv", out.Exports[1].FileName)
	assert.FileExists(t, out.Exports[0].FilePath)
	assert.Equal(t, "Executed load_period (5 rows affected); exported 2/2 tables, 3 records", out.Summary)
}

func TestRunWorkflowExecuteOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/workflows", map[string]any{
		"procedure":   "load_period",
		"periodStart": "20250101",
		"periodEnd":   "20250131",
		"tables":      []string{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[core.WorkflowOutcome](t, rec)
	assert.True(t, out.Success)
	assert.Empty(t, out.Exports)
}

func TestRunWorkflowErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		execErr  error
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing body",
			body:     nil,
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL004",
		},
		{
			name:     "unknown field",
			body:     `{"procedure":"load_period","bogus":1}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL004",
		},
		{
			name:     "unknown procedure",
			body:     map[string]any{"procedure": "nope"},
			wantCode: http.StatusNotFound,
			wantErr:  "EXE003",
		},
		{
			name:     "unknown table",
			body:     map[string]any{"procedure": "load_period", "tables": []string{"nope"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "TBL001",
		},
		{
			name:     "bad format",
			body:     map[string]any{"procedure": "load_period", "format": "pdf"},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL002",
		},
		{
			name:     "bad period",
			body:     map[string]any{"procedure": "load_period", "periodStart": "x", "periodEnd": "20250131"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "EXE002",
		},
		{
			name:     "procedure failure",
			body:     map[string]any{"procedure": "load_period", "periodStart": "20250101", "periodEnd": "20250131"},
			execErr:  errors.New("ERROR: division by zero"),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "EXE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(e *testEnv) { e.src.execErr = tt.execErr })

			rec := env.do(t, http.MethodPost, "/api/workflows", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"code":"`+tt.wantErr+`"`)
		})
	}
}

func TestExportBatch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{
		"tables":      []string{"lines", "orders"},
		"format":      "txt",
		"periodStart": "20241201",
		"periodEnd":   "20241231",
		"mode":        "IM",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	assert.True(t, resp.Success)
	require.Len(t, resp.Exports, 2)
	assert.Equal(t, "IM_DEC24_01-31_1.txt", resp.Exports[0].FileName)
	assert.True(t, strings.HasPrefix(resp.Exports[0].FilePath, env.cfg.Export.ImportDir))
}

func TestExportBatchSkipEmpty(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.src.tables["lines"].Rows = nil
	})

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{
		"tables":      []string{"lines"},
		"periodStart": "20250101",
		"periodEnd":   "20250131",
		"onEmpty":     "skip",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[batchResponse](t, rec)
	require.Len(t, resp.Exports, 1)
	assert.Equal(t, core.StatusSkipped, resp.Exports[0].Status)
	assert.Equal(t, "EX_JAN25_01-31_1_skipped", resp.Exports[0].FileName)
}

func TestExportBatchSpreadsheetLimit(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.src.counts["orders"] = core.SpreadsheetRowLimit + 10
	})

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{
		"tables": []string{"orders"},
		"format": "xlsx",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[batchResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Exports)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VAL001", resp.Error.Code)
	require.Len(t, resp.Error.Issues, 1)
	assert.Equal(t, "orders", resp.Error.Issues[0].Table)
}

func TestExportBatchRequiresTables(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{"format": "csv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportBatchBusy(t *testing.T) {
	limiter := core.NewLimiter(1, 10*time.Millisecond)
	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	env := newTestEnv(t, func(e *testEnv) { e.deps.Limiter = limiter })

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{"tables": []string{"orders"}})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"EXP004"`)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.src.counts["orders"] = 2_000_000
	})

	rec := env.do(t, http.MethodPost, "/api/validate", map[string]any{
		"tables": []string{"orders", "lines"},
		"format": "xlsx",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[core.ValidationOutcome](t, rec)
	assert.False(t, out.Valid)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, int64(2_000_000), out.Issues[0].RowCount)
	assert.NotEmpty(t, out.Suggestions)

	rec = env.do(t, http.MethodPost, "/api/validate", map[string]any{
		"tables": []string{"orders"},
		"format": "csv",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[core.ValidationOutcome](t, rec).Valid)
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/download/orders?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Records-Exported"))
	assert.Regexp(t, `^attachment; filename="orders_\d{8}_\d{6}\.csv"$`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,total\n1,9.5\n2,3.25\n", rec.Body.String())
}

func TestDownloadUnknownTable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/download/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"TBL001"`)
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.cfg.Security.RequireAPIKey = true
		e.cfg.Security.APIKeys = []string{"secret"}
	})

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/tables", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/tables", nil, "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/tables", nil, "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code, "health is not behind auth")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.deps.DB = stubPinger{}
		e.deps.Limiter = core.NewLimiter(3, time.Second)
	})

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.Equal(t, 2, resp.Tables)
	require.NotNil(t, resp.Exports)
	assert.Equal(t, 3, resp.Exports.Available)
}

func TestHealthDegraded(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.deps.DB = stubPinger{err: errors.New("connection refused")}
	})

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[healthResponse](t, rec).Status)
}

func TestCorrelations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/correlations/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"COR001"`)

	env.do(t, http.MethodGet, "/api/download/lines", nil)

	rec = env.do(t, http.MethodGet, "/api/correlations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]core.CorrelationContext](t, rec)
	require.Len(t, all, 2)

	rec = env.do(t, http.MethodGet, "/api/correlations/"+all[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, all[0].ID, decode[core.CorrelationContext](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/correlations?status=active", nil)
	assert.Empty(t, decode[[]core.CorrelationContext](t, rec))
}

func TestHistoryWithoutStore(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

type recordingHistory struct {
	limits []int
}

func (h *recordingHistory) Recent(_ context.Context, limit int) ([]database.HistoryEntry, error) {
	h.limits = append(h.limits, limit)
	return []database.HistoryEntry{}, nil
}

func TestHistoryLimitIsCapped(t *testing.T) {
	history := &recordingHistory{}
	env := newTestEnv(t, func(e *testEnv) { e.deps.History = history })

	for _, path := range []string{
		"/api/history",
		"/api/history?limit=10",
		"/api/history?limit=1099511627776",
		"/api/history?limit=-3",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	assert.Equal(t, []int{database.DefaultHistoryLimit, 10, database.MaxHistoryLimit, database.DefaultHistoryLimit}, history.limits)
}
