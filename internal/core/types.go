// Package core provides the business logic for table export workflows.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"strings"
	"time"
)

// Source is the database collaborator consumed by the pipeline.
// Satisfied by *database.Postgres and by test fakes.
type Source interface {
	// ExecuteProcedure runs a stored procedure with positionally bound
	// arguments and returns the number of rows it reported as affected.
	ExecuteProcedure(ctx context.Context, name string, args []any) (int64, error)

	// QueryTable reads every row of a table into memory.
	QueryTable(ctx context.Context, name string) (*TabularResult, error)

	// RowCount returns the number of rows currently in a table.
	RowCount(ctx context.Context, name string) (int64, error)
}

// ParamType is the binding kind of a procedure parameter.
// It is resolved once when the procedure spec is registered.
type ParamType int

const (
	ParamText ParamType = iota
	ParamInt
	ParamDate
	ParamDecimal
)

// String returns the lower-case name of the parameter type.
func (p ParamType) String() string {
	switch p {
	case ParamInt:
		return "int"
	case ParamDate:
		return "date"
	case ParamDecimal:
		return "decimal"
	default:
		return "text"
	}
}

// ResolveParamType maps a declared SQL type name to a binding kind.
// Any declared type containing "int" binds as an integer.
func ResolveParamType(declared string) ParamType {
	t := strings.ToLower(declared)
	switch {
	case strings.Contains(t, "int"):
		return ParamInt
	case strings.Contains(t, "date"):
		return ParamDate
	case strings.Contains(t, "decimal"), strings.Contains(t, "numeric"), strings.Contains(t, "money"):
		return ParamDecimal
	default:
		return ParamText
	}
}

// TableSpec identifies a queryable output table.
type TableSpec struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ParamSpec describes one positional procedure parameter.
type ParamSpec struct {
	Name         string    `json:"name" yaml:"name"`
	DeclaredType string    `json:"type" yaml:"type"`
	Type         ParamType `json:"-" yaml:"-"`
	Required     bool      `json:"required" yaml:"required"`
}

// ProcedureSpec identifies a parameterized execution unit and the tables it populates.
type ProcedureSpec struct {
	Name         string      `json:"name" yaml:"name"`
	DisplayName  string      `json:"displayName" yaml:"displayName"`
	Parameters   []ParamSpec `json:"parameters" yaml:"parameters"`
	OutputTables []string    `json:"outputTables" yaml:"outputTables"`
}

// Column describes one result-set column.
type Column struct {
	Name     string
	TypeName string // Database type name, informational only
}

// TabularResult is an in-memory result set for one table query.
type TabularResult struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of data rows.
func (r *TabularResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnNames returns the header row.
func (r *TabularResult) ColumnNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Release drops the row data so it can be garbage collected.
func (r *TabularResult) Release() {
	if r == nil {
		return
	}
	r.Rows = nil
}

// Mode selects the file naming scheme.
type Mode string

const (
	ModeExport Mode = "EX"
	ModeImport Mode = "IM"
	ModeAdHoc  Mode = "adhoc"
)

// ParseMode converts a user-supplied mode string. Empty means ModeExport.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EX", "EXPORT":
		return ModeExport, nil
	case "IM", "IMPORT":
		return ModeImport, nil
	case "ADHOC", "AD-HOC":
		return ModeAdHoc, nil
	}
	return "", &ValidationError{Message: "unknown mode: " + s}
}

// ExportStatus is the terminal state of one table export.
type ExportStatus string

const (
	StatusSucceeded ExportStatus = "succeeded"
	StatusFailed    ExportStatus = "failed"
	StatusSkipped   ExportStatus = "skipped"
	StatusCancelled ExportStatus = "cancelled"
)

// ExportOutcome is the result of exporting one table in one format.
type ExportOutcome struct {
	Success         bool          `json:"success"`
	Status          ExportStatus  `json:"status"`
	TableName       string        `json:"tableName"`
	FilePath        string        `json:"filePath,omitempty"`
	FileName        string        `json:"fileName"`
	FileSizeBytes   int64         `json:"fileSizeBytes"`
	RecordsExported int64         `json:"recordsExported"`
	Format          Format        `json:"format"`
	Message         string        `json:"message"`
	Elapsed         time.Duration `json:"elapsed"`
	Err             error         `json:"-"`
}

// ExecutionOutcome is the result of the parameterized execution step.
type ExecutionOutcome struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	RecordsAffected int64         `json:"recordsAffected"`
	Elapsed         time.Duration `json:"elapsed"`
	Err             error         `json:"-"`
}

// WorkflowOutcome aggregates one execute-then-export run.
type WorkflowOutcome struct {
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Summary      string            `json:"summary"`
	Procedure    string            `json:"procedure"`
	Execution    *ExecutionOutcome `json:"execution"`
	Exports      []ExportOutcome   `json:"exports"`
}

// ZeroRecordFunc is asked whether an empty table should still be exported.
// Returning false skips the table.
type ZeroRecordFunc func(ctx context.Context, table string) bool

// Recorder receives terminal outcomes for metrics collection.
type Recorder interface {
	ObserveExport(ExportOutcome)
	ObserveExecution(procedure string, outcome ExecutionOutcome)
	ObserveWorkflow(WorkflowOutcome)
}

type nopRecorder struct{}

func (nopRecorder) ObserveExport(ExportOutcome)                {}
func (nopRecorder) ObserveExecution(string, ExecutionOutcome) {}
func (nopRecorder) ObserveWorkflow(WorkflowOutcome)            {}
