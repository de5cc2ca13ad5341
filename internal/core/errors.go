package core

// errors.go defines the failure taxonomy of the export pipeline.
//
//   - ValidationError: pre-flight row-limit breach. Fatal to the batch,
//     reported before any file is written.
//   - ExportError: one table failed. Carried inside an ExportOutcome and
//     never returned from the batch loop.
//   - ExecutionError: the parameterized step failed. Fatal to the workflow.
//   - CancelledError: ctx was cancelled. Propagates out of the batch with
//     whatever outcomes were collected before it was observed.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled matches every cancellation-kind error via errors.Is.
var ErrCancelled = errors.New("operation cancelled")

// ErrorKind classifies a single-table export failure.
type ErrorKind string

const (
	KindRowLimit  ErrorKind = "row_limit"
	KindQuery     ErrorKind = "query"
	KindWrite     ErrorKind = "write"
	KindCancelled ErrorKind = "cancelled"
)

// ExportError describes why one table export failed.
// The underlying library error is flattened into Message so callers
// never depend on encoder or driver error types.
type ExportError struct {
	Kind    ErrorKind
	Table   string
	Message string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %s", e.Table, e.Message)
}

// Is reports cancellation-kind errors as ErrCancelled.
func (e *ExportError) Is(target error) bool {
	return target == ErrCancelled && e.Kind == KindCancelled
}

func newExportError(kind ErrorKind, table string, err error) *ExportError {
	return &ExportError{Kind: kind, Table: table, Message: err.Error()}
}

// TableIssue is one table that exceeds a format's row ceiling.
type TableIssue struct {
	Table    string `json:"table"`
	RowCount int64  `json:"rowCount"`
	Limit    int64  `json:"limit"`
}

// ValidationError is returned when a batch must not proceed.
type ValidationError struct {
	Message     string
	Issues      []TableIssue
	Suggestions []string
}

func (e *ValidationError) Error() string {
	if len(e.Suggestions) == 0 {
		return e.Message
	}
	return e.Message + " Suggestions: " + strings.Join(e.Suggestions, "; ")
}

// ExecutionError is returned when the parameterized step fails.
type ExecutionError struct {
	Procedure string
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %s", e.Procedure, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// CancelledError reports cooperative cancellation of a batch or workflow.
type CancelledError struct {
	Op    string // Phase in which cancellation was observed
	Table string // Table being processed, if any
	Cause error  // ctx.Err()
}

func (e *CancelledError) Error() string {
	msg := "cancelled during " + e.Op
	if e.Table != "" {
		msg += " of " + e.Table
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// IsCancelled reports whether err is any cancellation-kind error,
// including a bare context.Canceled or context.DeadlineExceeded.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || isContextErr(err)
}
