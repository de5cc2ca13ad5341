package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Typed pipeline errors are mapped first; anything else is
// matched against known technical patterns.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Row limit: A table exceeds the spreadsheet row limit
//	         Action: Switch to CSV/TXT, narrow the period, or split the export
//	VAL002 - Unknown format: The requested file format is not supported
//	         Action: Use xlsx, csv, or txt
//	VAL003 - Unknown mode: The requested naming mode is not supported
//	         Action: Use EX, IM, or adhoc
//	VAL004 - Bad request: The request is missing required values
//	         Action: Check the procedure, tables, and period values
//
// # Execution Errors (EXE001-EXE099)
//
//	EXE001 - Execution failed: The stored procedure reported an error
//	         Action: Check the period values and the procedure's logs
//	EXE002 - Invalid parameter: A period value could not be bound
//	         Action: Use 8-digit dates (YYYYMMDD) or whole numbers
//	EXE003 - Unknown procedure: The procedure is not in the catalog
//	         Action: Verify the procedure name
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Query failed: A table could not be read
//	EXP002 - Write failed: A file could not be written
//	EXP003 - Row limit: The table is too large for a spreadsheet
//	EXP004 - Busy: All export slots are in use
//
// # Cancellation (CAN001-CAN099)
//
//	CAN001 - Cancelled: The operation was cancelled
//	CAN002 - Timed out: The operation exceeded its time budget
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Missing relation (table or procedure does not exist)
//	DB004 - Permission denied
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Unknown table: The table is not in the catalog
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application
// logs, searching by correlation id, for the original technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Request Errors (VAL002-VAL004)
	// =========================================================================
	{
		pattern: "unknown format",
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Use xlsx, csv, or txt",
			Code:    "VAL002",
		},
	},
	{
		pattern: "unknown mode",
		msg: UserMessage{
			Message: "Unsupported naming mode",
			Action:  "Use EX, IM, or adhoc",
			Code:    "VAL003",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "A required value is missing",
			Action:  "Check the procedure, tables, and period values",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// Capacity Errors (EXP004)
	// =========================================================================
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "The server is busy with other exports",
			Action:  "Please try again in a few moments",
			Code:    "EXP004",
		},
	},

	// =========================================================================
	// Catalog Errors (TBL001, EXE003)
	// =========================================================================
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "Verify the table name against the catalog",
			Code:    "TBL001",
		},
	},
	{
		pattern: "unknown procedure",
		msg: UserMessage{
			Message: "Unknown procedure",
			Action:  "Verify the procedure name against the catalog",
			Code:    "EXE003",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB004)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "A table or procedure does not exist in the database",
			Action:  "Check that the catalog matches the database schema",
			Code:    "DB003",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "The database user lacks permission for this operation",
			Action:  "Ask an administrator to grant access",
			Code:    "DB004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed pipeline errors are recognised first, then known patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTypedError(err); ok {
		return msg
	}

	if msg, ok := matchPattern(err.Error()); ok {
		return msg
	}

	return defaultMessage
}

func matchPattern(text string) (UserMessage, bool) {
	lower := strings.ToLower(text)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

func mapTypedError(err error) (UserMessage, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return UserMessage{
			Message: "The operation timed out",
			Action:  "Narrow the period or export fewer tables at once",
			Code:    "CAN002",
		}, true
	}
	if IsCancelled(err) {
		return UserMessage{
			Message: "The operation was cancelled",
			Action:  "Start a new run when ready; files already written were kept",
			Code:    "CAN001",
		}, true
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		if len(validationErr.Issues) > 0 {
			return UserMessage{
				Message: validationErr.Message,
				Action:  strings.Join(validationErr.Suggestions, "; "),
				Code:    "VAL001",
			}, true
		}
		if msg, ok := matchPattern(validationErr.Message); ok {
			return msg, true
		}
		return UserMessage{Message: validationErr.Message, Action: "Check the request values", Code: "VAL004"}, true
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		msg := UserMessage{
			Message: "The procedure failed: " + execErr.Message,
			Action:  "Check the period values and the procedure's logs",
			Code:    "EXE001",
		}
		switch {
		case strings.Contains(execErr.Message, "unknown procedure"):
			msg.Message = "Unknown procedure: " + execErr.Procedure
			msg.Action = "Verify the procedure name against the catalog"
			msg.Code = "EXE003"
		case strings.HasPrefix(execErr.Message, "parameter "):
			msg.Action = "Use 8-digit dates (YYYYMMDD) or whole numbers for period values"
			msg.Code = "EXE002"
		}
		return msg, true
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		switch exportErr.Kind {
		case KindRowLimit:
			return UserMessage{Message: exportErr.Message, Action: "Export this table as CSV or TXT", Code: "EXP003"}, true
		case KindQuery:
			return UserMessage{Message: "Failed to read table " + exportErr.Table, Action: "Check the database connection and table", Code: "EXP001"}, true
		default:
			return UserMessage{Message: "Failed to write file for " + exportErr.Table, Action: "Check disk space and output directory permissions", Code: "EXP002"}, true
		}
	}

	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific (non-ERR000) message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
