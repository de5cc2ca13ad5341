package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/samber/lo"
)

// Limits for History.Recent.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// History records finished workflows and export batches in export_history.
type History struct {
	db DBTX
}

// NewHistory creates a History store.
func NewHistory(db DBTX) *History {
	return &History{db: db}
}

var _ core.HistoryRecorder = (*History)(nil)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS export_history (
	id               BIGSERIAL PRIMARY KEY,
	correlation_id   TEXT        NOT NULL,
	kind             TEXT        NOT NULL,
	procedure_name   TEXT        NOT NULL DEFAULT '',
	period_start     TEXT        NOT NULL DEFAULT '',
	period_end       TEXT        NOT NULL DEFAULT '',
	format           TEXT        NOT NULL,
	success          BOOLEAN     NOT NULL,
	tables_requested INTEGER     NOT NULL,
	tables_succeeded INTEGER     NOT NULL,
	records_exported BIGINT      NOT NULL,
	summary          TEXT        NOT NULL DEFAULT '',
	error_message    TEXT        NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertHistory = `
INSERT INTO export_history (
	correlation_id, kind, procedure_name, period_start, period_end, format,
	success, tables_requested, tables_succeeded, records_exported, summary, error_message
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Record kinds.
const (
	KindWorkflow = "workflow"
	KindBatch    = "batch"
)

// HistoryEntry is one row of export_history.
type HistoryEntry struct {
	ID              int64     `json:"id"`
	CorrelationID   string    `json:"correlationId"`
	Kind            string    `json:"kind"`
	Procedure       string    `json:"procedure,omitempty"`
	PeriodStart     string    `json:"periodStart,omitempty"`
	PeriodEnd       string    `json:"periodEnd,omitempty"`
	Format          string    `json:"format"`
	Success         bool      `json:"success"`
	TablesRequested int       `json:"tablesRequested"`
	TablesSucceeded int       `json:"tablesSucceeded"`
	RecordsExported int64     `json:"recordsExported"`
	Summary         string    `json:"summary,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// EnsureSchema creates the history table if it does not exist.
func (h *History) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create export_history: %w", err)
	}
	return nil
}

// RecordWorkflow stores the final outcome of a workflow run.
func (h *History) RecordWorkflow(ctx context.Context, correlationID string, req core.WorkflowRequest, outcome *core.WorkflowOutcome) error {
	if outcome == nil {
		return errors.New("nil workflow outcome")
	}
	return h.insert(ctx, HistoryEntry{
		CorrelationID:   correlationID,
		Kind:            KindWorkflow,
		Procedure:       req.Procedure,
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Format:          string(req.Format),
		Success:         outcome.Success,
		TablesRequested: len(req.Tables),
		TablesSucceeded: succeeded(outcome.Exports),
		RecordsExported: records(outcome.Exports),
		Summary:         outcome.Summary,
		ErrorMessage:    outcome.ErrorMessage,
	})
}

// RecordBatch stores the result of a standalone export batch.
func (h *History) RecordBatch(ctx context.Context, correlationID string, req core.BatchRequest, outcomes []core.ExportOutcome, batchErr error) error {
	entry := HistoryEntry{
		CorrelationID:   correlationID,
		Kind:            KindBatch,
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Format:          string(req.Format),
		Success:         batchErr == nil && succeeded(outcomes) == len(outcomes),
		TablesRequested: len(req.Tables),
		TablesSucceeded: succeeded(outcomes),
		RecordsExported: records(outcomes),
		Summary:         fmt.Sprintf("exported %d/%d tables", succeeded(outcomes), len(req.Tables)),
	}
	if batchErr != nil {
		entry.ErrorMessage = batchErr.Error()
	}
	return h.insert(ctx, entry)
}

// Recent returns the newest entries first. limit is clamped to
// [1, MaxHistoryLimit]; zero or less means DefaultHistoryLimit.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	rows, err := h.db.Query(ctx, `
		SELECT id, correlation_id, kind, procedure_name, period_start, period_end, format,
		       success, tables_requested, tables_succeeded, records_exported, summary,
		       error_message, created_at
		FROM export_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query export_history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.CorrelationID, &e.Kind, &e.Procedure, &e.PeriodStart, &e.PeriodEnd, &e.Format,
			&e.Success, &e.TablesRequested, &e.TablesSucceeded, &e.RecordsExported, &e.Summary,
			&e.ErrorMessage, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export_history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *History) insert(ctx context.Context, e HistoryEntry) error {
	_, err := h.db.Exec(ctx, insertHistory,
		e.CorrelationID, e.Kind, e.Procedure, e.PeriodStart, e.PeriodEnd, e.Format,
		e.Success, e.TablesRequested, e.TablesSucceeded, e.RecordsExported, e.Summary, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert export_history: %w", err)
	}
	return nil
}

func succeeded(outcomes []core.ExportOutcome) int {
	return lo.CountBy(outcomes, func(o core.ExportOutcome) bool { return o.Success })
}

func records(outcomes []core.ExportOutcome) int64 {
	return lo.SumBy(outcomes, func(o core.ExportOutcome) int64 { return o.RecordsExported })
}
