package core

import (
	"context"
	"fmt"
	"strings"
)

// warnThreshold is the share of the spreadsheet ceiling above which a
// table is logged as close to the limit.
const warnThreshold = 0.9

// DefaultSuggestions are attached to every failed validation.
var DefaultSuggestions = []string{
	"Switch to CSV or TXT format, which have no row limit",
	"Narrow the parameter range to reduce the number of rows",
	"Split the tables into multiple smaller exports",
}

// ValidationOutcome is the result of a pre-flight format check.
type ValidationOutcome struct {
	Valid        bool         `json:"valid"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	Issues       []TableIssue `json:"issues,omitempty"`
	Suggestions  []string     `json:"suggestions,omitempty"`
}

// Err returns the outcome as a *ValidationError, or nil when valid.
func (v ValidationOutcome) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{
		Message:     v.ErrorMessage,
		Issues:      v.Issues,
		Suggestions: v.Suggestions,
	}
}

// Validator checks candidate tables against a format's row ceiling.
type Validator struct {
	source Source
}

// NewValidator creates a Validator that measures tables through source.
func NewValidator(source Source) *Validator {
	return &Validator{source: source}
}

// ValidateForFormat rejects the batch if any table would exceed the
// format's row ceiling. A table whose count cannot be measured is logged
// and left out of the issue list.
func (v *Validator) ValidateForFormat(ctx context.Context, tables []string, format Format) ValidationOutcome {
	if format != FormatXLSX {
		return ValidationOutcome{Valid: true}
	}

	logger := loggerFrom(ctx).With("format", format)

	var issues []TableIssue
	for _, table := range tables {
		count, err := v.source.RowCount(ctx, table)
		if err != nil {
			logger.Warn("row count failed, skipping limit check", "table", table, "error", err)
			continue
		}

		switch {
		case count > SpreadsheetRowLimit:
			issues = append(issues, TableIssue{Table: table, RowCount: count, Limit: SpreadsheetRowLimit})
		case float64(count) > float64(SpreadsheetRowLimit)*warnThreshold:
			logger.Warn("table is close to the spreadsheet row limit",
				"table", table,
				"rows", count,
				"limit", SpreadsheetRowLimit,
			)
		}
	}

	if len(issues) == 0 {
		return ValidationOutcome{Valid: true}
	}

	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = fmt.Sprintf("%s (%d rows)", issue.Table, issue.RowCount)
	}
	msg := fmt.Sprintf("Spreadsheet export is limited to %d rows per table; %d table(s) exceed it: %s.",
		SpreadsheetRowLimit, len(issues), strings.Join(parts, ", "))

	logger.Warn("export validation failed", "tables", len(issues))

	return ValidationOutcome{
		Valid:        false,
		ErrorMessage: msg,
		Issues:       issues,
		Suggestions:  append([]string(nil), DefaultSuggestions...),
	}
}
