package core

// batch.go exports a list of tables one at a time.
//
// Per batch: Started -> {per table: Queried -> ZeroRecordDecision -> Written} -> Completed.
//
// Tables are processed strictly sequentially so that at most one result set
// is held in memory; each result is released as soon as its write returns.
// A failing table is recorded and the loop moves on. Cancellation is
// different: it stops the batch and is returned to the caller together
// with the outcomes collected so far.

import (
	"context"
	"fmt"
	"time"
)

// BatchRequest describes one export batch.
type BatchRequest struct {
	Tables        []string
	Format        Format
	Dir           string
	PeriodStart   string
	PeriodEnd     string
	Mode          Mode
	OnZeroRecords ZeroRecordFunc // Optional; nil exports empty tables normally
}

// Coordinator runs export batches.
type Coordinator struct {
	source    Source
	writer    *Writer
	validator *Validator
	tracker   *Tracker
	recorder  Recorder
	history   BatchHistory
	now       func() time.Time
}

// BatchHistory persists standalone batch results. Batches that run inside a
// workflow or an ad-hoc download are recorded by their parent, not here.
type BatchHistory interface {
	RecordBatch(ctx context.Context, correlationID string, req BatchRequest, outcomes []ExportOutcome, err error) error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithBatchHistory attaches a store for standalone batch results.
func WithBatchHistory(h BatchHistory) CoordinatorOption {
	return func(c *Coordinator) {
		c.history = h
	}
}

// WithClock overrides the clock used for file names.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(source Source, tracker *Tracker, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		source:    source,
		writer:    NewWriter(),
		validator: NewValidator(source),
		tracker:   tracker,
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validator returns the coordinator's pre-flight validator.
func (c *Coordinator) Validator() *Validator {
	return c.validator
}

// ExportAll exports every table in req.Tables and returns one outcome per
// table processed. A *ValidationError means nothing was written. A
// *CancelledError is returned with the outcomes collected before it.
func (c *Coordinator) ExportAll(ctx context.Context, req BatchRequest) (outcomes []ExportOutcome, err error) {
	id := c.tracker.Begin(OpExportBatch)
	ctx = WithCorrelationID(ctx, id)
	logger := loggerFrom(ctx).With("format", req.Format, "mode", req.Mode)

	defer func() {
		success := err == nil
		for _, o := range outcomes {
			if !o.Success {
				success = false
				break
			}
		}
		c.tracker.Complete(id, success)

		if c.history != nil && ParentCorrelationIDFromContext(ctx) == "" {
			if herr := c.history.RecordBatch(context.WithoutCancel(ctx), id, req, outcomes, err); herr != nil {
				logger.Warn("failed to record batch history", "error", herr)
			}
		}
	}()

	if err := checkCancelled(ctx, "batch start", ""); err != nil {
		return nil, err
	}

	if req.Mode == "" {
		req.Mode = ModeExport
	}

	logger.Info("export batch started", "tables", len(req.Tables), "dir", req.Dir)
	start := time.Now()

	if req.Format == FormatXLSX {
		if v := c.validator.ValidateForFormat(ctx, req.Tables, req.Format); !v.Valid {
			return nil, v.Err()
		}
	}

	outcomes = make([]ExportOutcome, 0, len(req.Tables))
	for i, table := range req.Tables {
		if err := checkCancelled(ctx, "query", table); err != nil {
			logger.Warn("export batch cancelled", "table", table, "completed", len(outcomes))
			return outcomes, err
		}

		name := BuildFileName(NamingInput{
			Mode:        req.Mode,
			Table:       table,
			PeriodStart: req.PeriodStart,
			PeriodEnd:   req.PeriodEnd,
			Sequence:    i + 1,
		}, req.Format, c.now())

		outcome, cancelled := c.exportOne(ctx, table, name, req)
		c.recorder.ObserveExport(outcome)
		outcomes = append(outcomes, outcome)

		if cancelled {
			logger.Warn("export batch cancelled", "table", table, "completed", len(outcomes))
			return outcomes, &CancelledError{Op: "write", Table: table, Cause: ctx.Err()}
		}
	}

	logger.Info("export batch completed",
		"tables", len(outcomes),
		"succeeded", countSucceeded(outcomes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return outcomes, nil
}

// exportOne queries and writes a single table. The bool result reports
// whether cancellation was observed while doing so.
func (c *Coordinator) exportOne(ctx context.Context, table, fileName string, req BatchRequest) (ExportOutcome, bool) {
	start := time.Now()

	rows, err := c.source.QueryTable(ctx, table)
	if err != nil {
		if IsCancelled(err) || ctx.Err() != nil {
			return ExportOutcome{
				Status:    StatusCancelled,
				TableName: table,
				FileName:  fileName,
				Format:    req.Format,
				Message:   fmt.Sprintf("Query of %s cancelled", table),
				Elapsed:   time.Since(start),
				Err:       newExportError(KindCancelled, table, err),
			}, true
		}
		loggerFrom(ctx).Error("table query failed", "table", table, "error", err)
		return ExportOutcome{
			Status:    StatusFailed,
			TableName: table,
			FileName:  fileName,
			Format:    req.Format,
			Message:   fmt.Sprintf("Failed to query %s: %v", table, err),
			Elapsed:   time.Since(start),
			Err:       newExportError(KindQuery, table, err),
		}, false
	}
	if rows == nil {
		rows = &TabularResult{}
	}
	defer rows.Release()

	if rows.Len() == 0 && req.OnZeroRecords != nil {
		if !req.OnZeroRecords(ctx, table) {
			loggerFrom(ctx).Info("empty table skipped", "table", table)
			return ExportOutcome{
				Success:   true,
				Status:    StatusSkipped,
				TableName: table,
				FileName:  SkippedFileName(fileName),
				Format:    req.Format,
				Message:   fmt.Sprintf("%s has no records; skipped", table),
				Elapsed:   time.Since(start),
			}, false
		}
	}

	outcome := c.writer.Write(ctx, WriteRequest{
		Table:    table,
		Dir:      req.Dir,
		Rows:     rows,
		Format:   req.Format,
		FileName: fileName,
	})
	outcome.Elapsed = time.Since(start)

	return outcome, outcome.Status == StatusCancelled
}

// ExportTable is the ad-hoc single-table download. The file is named
// {table}_{timestamp}.{ext}. Unlike a batch, a failed write is returned
// as an error alongside the outcome.
func (c *Coordinator) ExportTable(ctx context.Context, table string, format Format, dir string) (ExportOutcome, error) {
	id := c.tracker.Begin(OpExportTable)
	ctx = WithCorrelationID(ctx, id)

	outcomes, err := c.ExportAll(ctx, BatchRequest{
		Tables: []string{table},
		Format: format,
		Dir:    dir,
		Mode:   ModeAdHoc,
	})

	var outcome ExportOutcome
	if len(outcomes) > 0 {
		outcome = outcomes[0]
	}
	if err == nil && !outcome.Success {
		err = outcome.Err
	}
	c.tracker.Complete(id, err == nil)
	return outcome, err
}
