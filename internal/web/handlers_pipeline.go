package web

import (
	"net/http"
	"path/filepath"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/logging"
	"github.com/go-chi/chi/v5"
)

// workflowRequest is the body of POST /api/workflows.
// Omitting tables exports the procedure's output tables; an empty list
// runs the procedure only.
type workflowRequest struct {
	Procedure string `json:"procedure"`
	exportParams
}

// workflowResponse is the outcome plus the mapped error, if the run stopped.
type workflowResponse struct {
	*core.WorkflowOutcome
	Error *ErrorResponse `json:"error,omitempty"`
}

// batchResponse is the body returned by POST /api/exports.
type batchResponse struct {
	Success bool                 `json:"success"`
	Exports []core.ExportOutcome `json:"exports"`
	Error   *ErrorResponse       `json:"error,omitempty"`
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Procedure == "" {
		respondError(w, r, &core.ValidationError{Message: "procedure is required"}, http.StatusBadRequest)
		return
	}

	spec, ok := s.deps.Catalog.Procedure(req.Procedure)
	if !ok {
		respondError(w, r, &core.ExecutionError{Procedure: req.Procedure, Message: "unknown procedure"}, http.StatusNotFound)
		return
	}

	tables := req.Tables
	if tables == nil {
		tables = spec.OutputTables
	}
	tables, err := s.deps.Catalog.ResolveTables(tables)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	format, mode, dir, onEmpty, err := s.resolve(req.exportParams)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	release, err := s.acquireSlot(ctx)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer release()

	logging.FromContext(ctx).Info("workflow requested",
		"procedure", req.Procedure,
		"tables", len(tables),
		"format", format,
	)

	outcome, err := s.deps.Orchestrator.RunWorkflow(ctx, core.WorkflowRequest{
		Procedure:     req.Procedure,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		Tables:        tables,
		Format:        format,
		Dir:           dir,
		Mode:          mode,
		OnZeroRecords: onEmpty,
	})

	resp := workflowResponse{WorkflowOutcome: outcome}
	status := http.StatusOK
	if err != nil {
		resp.Error = errorBody(err)
		status = statusFor(err)
		logging.FromContext(r.Context()).Warn("workflow stopped", "error", err, "code", resp.Error.Code)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	var req exportParams
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if len(req.Tables) == 0 {
		respondError(w, r, &core.ValidationError{Message: "tables is required"}, http.StatusBadRequest)
		return
	}
	tables, err := s.deps.Catalog.ResolveTables(req.Tables)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	format, mode, dir, onEmpty, err := s.resolve(req)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	release, err := s.acquireSlot(ctx)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer release()

	outcomes, err := s.deps.Coordinator.ExportAll(ctx, core.BatchRequest{
		Tables:        tables,
		Format:        format,
		Dir:           dir,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		Mode:          mode,
		OnZeroRecords: onEmpty,
	})
	if outcomes == nil {
		outcomes = []core.ExportOutcome{}
	}

	resp := batchResponse{Exports: outcomes, Success: err == nil}
	for _, o := range outcomes {
		if !o.Success {
			resp.Success = false
		}
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = errorBody(err)
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// validateRequest is the body of POST /api/validate.
type validateRequest struct {
	Tables []string `json:"tables"`
	Format string   `json:"format"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	tables, err := s.deps.Catalog.ResolveTables(req.Tables)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	format, err := s.resolveFormat(req.Format)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	writeJSON(w, http.StatusOK, s.deps.Coordinator.Validator().ValidateForFormat(ctx, tables, format))
}

// handleDownload exports one table ad hoc and streams the file back.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if _, ok := s.deps.Catalog.Table(table); !ok {
		respondError(w, r, &core.ValidationError{Message: "unknown table: " + table}, http.StatusNotFound)
		return
	}

	format, err := s.resolveFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	release, err := s.acquireSlot(ctx)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer release()

	outcome, err := s.deps.Coordinator.ExportTable(ctx, table, format, s.cfg.Export.OutputDir)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(outcome.FileName)+`"`)
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("X-Records-Exported", itoa64(outcome.RecordsExported))
	http.ServeFile(w, r, outcome.FilePath)
}

func contentType(f core.Format) string {
	switch f {
	case core.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case core.FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/tab-separated-values; charset=utf-8"
	}
}
