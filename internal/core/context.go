package core

import (
	"context"
	"errors"
)

type contextKey string

const (
	ctxKeyCorrelationID contextKey = "correlation_id"
	ctxKeyParentID      contextKey = "correlation_parent"
)

// WithCorrelationID returns a context carrying the correlation id for log lines.
// Any id already present becomes the parent.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if parent := CorrelationIDFromContext(ctx); parent != "" {
		ctx = context.WithValue(ctx, ctxKeyParentID, parent)
	}
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationIDFromContext extracts the current correlation id.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCorrelationID).(string); ok {
		return v
	}
	return ""
}

// ParentCorrelationIDFromContext extracts the enclosing operation's id.
func ParentCorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyParentID).(string); ok {
		return v
	}
	return ""
}

// checkCancelled returns a *CancelledError if ctx is done.
func checkCancelled(ctx context.Context, op, table string) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{Op: op, Table: table, Cause: err}
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
