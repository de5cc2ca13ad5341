package web

// handlers_common.go holds request parsing shared by the pipeline handlers.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/dataporter/internal/core"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// exportParams are the fields shared by workflow and batch requests.
type exportParams struct {
	Tables      []string `json:"tables"`
	Format      string   `json:"format"`
	PeriodStart string   `json:"periodStart"`
	PeriodEnd   string   `json:"periodEnd"`
	Mode        string   `json:"mode"`
	OnEmpty     string   `json:"onEmpty"`
}

// decodeJSON decodes a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Message: "request body is required"}
		}
		return &core.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

// resolveFormat parses a requested format, falling back to the configured default.
func (s *Server) resolveFormat(requested string) (core.Format, error) {
	if strings.TrimSpace(requested) == "" {
		requested = s.cfg.Export.DefaultFormat
	}
	return core.ParseFormat(requested)
}

// resolve converts shared params into the pipeline's typed values.
func (s *Server) resolve(p exportParams) (core.Format, core.Mode, string, core.ZeroRecordFunc, error) {
	format, err := s.resolveFormat(p.Format)
	if err != nil {
		return "", "", "", nil, err
	}
	mode, err := core.ParseMode(p.Mode)
	if err != nil {
		return "", "", "", nil, err
	}
	onEmpty, err := zeroRecordPolicy(p.OnEmpty)
	if err != nil {
		return "", "", "", nil, err
	}
	return format, mode, s.cfg.Export.DirFor(string(mode)), onEmpty, nil
}

// zeroRecordPolicy maps the onEmpty request field to a callback.
// There is no interactive caller over HTTP, so only export and skip exist.
func zeroRecordPolicy(policy string) (core.ZeroRecordFunc, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "export":
		return nil, nil
	case "skip":
		return func(context.Context, string) bool { return false }, nil
	}
	return nil, &core.ValidationError{Message: fmt.Sprintf("onEmpty must be export or skip, got %q", policy)}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
