package core

// workflow.go composes one execution step with one export batch.
//
// State machine: Idle -> Executing -> (success) Exporting -> Done
//                                  -> (failure) Done(failed)
//
// Export never starts before execution has finished successfully, because
// the exported tables hold the data the procedure just produced.

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// WorkflowRequest describes one execute-then-export run.
type WorkflowRequest struct {
	Procedure     string
	PeriodStart   string
	PeriodEnd     string
	Tables        []string
	Format        Format
	Dir           string
	Mode          Mode
	OnZeroRecords ZeroRecordFunc
}

// HistoryRecorder persists finished workflow outcomes.
type HistoryRecorder interface {
	RecordWorkflow(ctx context.Context, correlationID string, req WorkflowRequest, outcome *WorkflowOutcome) error
}

// Orchestrator runs workflows.
type Orchestrator struct {
	source      Source
	catalog     *Catalog
	coordinator *Coordinator
	tracker     *Tracker
	recorder    Recorder
	history     HistoryRecorder
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkflowRecorder attaches a metrics recorder.
func WithWorkflowRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHistory attaches a run history store.
func WithHistory(h HistoryRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.history = h
	}
}

// NewOrchestrator creates an Orchestrator that exports through coordinator.
func NewOrchestrator(source Source, catalog *Catalog, coordinator *Coordinator, tracker *Tracker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		catalog:     catalog,
		coordinator: coordinator,
		tracker:     tracker,
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunWorkflow executes the procedure and, if it succeeds, exports the tables.
//
// The returned outcome is always non-nil. The error is non-nil for the
// conditions that stop a run: *ExecutionError, *ValidationError, and
// *CancelledError.
func (o *Orchestrator) RunWorkflow(ctx context.Context, req WorkflowRequest) (outcome *WorkflowOutcome, err error) {
	id := o.tracker.Begin(OpWorkflow)
	ctx = WithCorrelationID(ctx, id)
	logger := loggerFrom(ctx).With("procedure", req.Procedure)

	outcome = &WorkflowOutcome{Procedure: req.Procedure, Exports: []ExportOutcome{}}

	defer func() {
		if err != nil && outcome.ErrorMessage == "" {
			outcome.ErrorMessage = err.Error()
		}
		o.tracker.Complete(id, outcome.Success)
		o.recorder.ObserveWorkflow(*outcome)
		if o.history != nil {
			if herr := o.history.RecordWorkflow(context.WithoutCancel(ctx), id, req, outcome); herr != nil {
				logger.Warn("failed to record workflow history", "error", herr)
			}
		}
	}()

	logger.Info("workflow started", "tables", len(req.Tables), "format", req.Format)

	exec, err := o.execute(ctx, req)
	outcome.Execution = &exec
	if err != nil {
		outcome.Summary = exec.Message
		logger.Error("workflow execution failed", "error", err)
		return outcome, err
	}

	if len(req.Tables) == 0 {
		outcome.Success = true
		outcome.Summary = summarize(req.Procedure, exec, nil)
		logger.Info("workflow completed without exports")
		return outcome, nil
	}

	exports, err := o.coordinator.ExportAll(ctx, BatchRequest{
		Tables:        req.Tables,
		Format:        req.Format,
		Dir:           req.Dir,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		Mode:          req.Mode,
		OnZeroRecords: req.OnZeroRecords,
	})
	if exports != nil {
		outcome.Exports = exports
	}
	outcome.Summary = summarize(req.Procedure, exec, outcome.Exports)

	if err != nil {
		logger.Warn("workflow export stopped", "error", err)
		return outcome, err
	}

	outcome.Success = countSucceeded(outcome.Exports) > 0
	if !outcome.Success {
		outcome.ErrorMessage = "no tables were exported successfully"
	}

	logger.Info("workflow completed", "success", outcome.Success, "summary", outcome.Summary)
	return outcome, nil
}

// execute binds parameters and runs the procedure.
func (o *Orchestrator) execute(ctx context.Context, req WorkflowRequest) (ExecutionOutcome, error) {
	id := o.tracker.Begin(OpExecute)
	ctx = WithCorrelationID(ctx, id)
	start := time.Now()

	exec, err := o.runProcedure(ctx, req)
	exec.Elapsed = time.Since(start)
	o.tracker.Complete(id, exec.Success)
	o.recorder.ObserveExecution(req.Procedure, exec)
	return exec, err
}

func (o *Orchestrator) runProcedure(ctx context.Context, req WorkflowRequest) (ExecutionOutcome, error) {
	fail := func(msg string, cause error) (ExecutionOutcome, error) {
		execErr := &ExecutionError{Procedure: req.Procedure, Message: msg, Err: cause}
		return ExecutionOutcome{Message: execErr.Error(), Err: execErr}, execErr
	}

	if err := checkCancelled(ctx, "execute", ""); err != nil {
		return ExecutionOutcome{Message: err.Error(), Err: err}, err
	}

	spec, ok := o.catalog.Procedure(req.Procedure)
	if !ok {
		return fail("unknown procedure", nil)
	}

	args, err := BindParameters(spec, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return fail(err.Error(), err)
	}

	loggerFrom(ctx).Info("executing procedure", "procedure", spec.Name, "args", len(args))

	affected, err := o.source.ExecuteProcedure(ctx, spec.Name, args)
	if err != nil {
		if IsCancelled(err) {
			cancelErr := &CancelledError{Op: "execute", Cause: err}
			return ExecutionOutcome{Message: cancelErr.Error(), Err: cancelErr}, cancelErr
		}
		return fail(err.Error(), err)
	}

	return ExecutionOutcome{
		Success:         true,
		Message:         fmt.Sprintf("Executed %s (%d rows affected)", spec.DisplayLabel(), affected),
		RecordsAffected: affected,
	}, nil
}

func countSucceeded(exports []ExportOutcome) int {
	return lo.CountBy(exports, func(e ExportOutcome) bool { return e.Success })
}

// summarize builds the human-readable completion line.
func summarize(procedure string, exec ExecutionOutcome, exports []ExportOutcome) string {
	line := fmt.Sprintf("Executed %s (%d rows affected)", procedure, exec.RecordsAffected)
	if len(exports) == 0 {
		return line
	}

	records := lo.SumBy(exports, func(e ExportOutcome) int64 { return e.RecordsExported })
	return fmt.Sprintf("%s; exported %d/%d tables, %d records", line, countSucceeded(exports), len(exports), records)
}
