package web

// errors.go provides unified error response handling for the API.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to get a user-friendly message
//  4. Technical error is logged with request and correlation ids
//  5. User message is returned as JSON with a status derived from the error type

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Issues  []core.TableIssue `json:"issues,omitempty"`
}

// errorBody maps err to the response payload.
func errorBody(err error) *ErrorResponse {
	msg := core.MapError(err)
	body := &ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		body.Issues = validationErr.Issues
	}
	return body
}

// statusFor picks the HTTP status for a pipeline error.
func statusFor(err error) int {
	var (
		validationErr *core.ValidationError
		execErr       *core.ExecutionError
		exportErr     *core.ExportError
	)
	switch {
	case errors.Is(err, core.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case core.IsCancelled(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &exportErr):
		if exportErr.Kind == core.KindRowLimit {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes the mapped
// user message. A zero status is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	body := errorBody(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", body.Code,
	)

	writeJSON(w, status, body)
}
