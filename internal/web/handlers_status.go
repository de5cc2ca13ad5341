package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/database"
	"github.com/go-chi/chi/v5"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status             string              `json:"status"`
	Database           string              `json:"database"`
	Tables             int                 `json:"tables"`
	ActiveCorrelations int                 `json:"activeCorrelations"`
	Exports            *core.LimiterStatus `json:"exports,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:             "ok",
		Database:           "unchecked",
		Tables:             s.deps.Catalog.TableCount(),
		ActiveCorrelations: s.deps.Tracker.ActiveCount(),
	}

	if s.deps.Limiter != nil {
		st := s.deps.Limiter.Status()
		resp.Exports = &st
	}

	status := http.StatusOK
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListCorrelations(w http.ResponseWriter, r *http.Request) {
	snapshot := s.deps.Tracker.Snapshot()
	if r.URL.Query().Get("status") == string(core.CorrelationActive) {
		active := make([]core.CorrelationContext, 0, len(snapshot))
		for _, c := range snapshot {
			if c.Status == core.CorrelationActive {
				active = append(active, c)
			}
		}
		snapshot = active
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGetCorrelation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := s.deps.Tracker.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "correlation not found",
			Message: "No operation with this correlation id is being tracked",
			Action:  "Finished operations are removed after the configured max age",
			Code:    "COR001",
		})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit := min(parseIntParam(r, "limit", database.DefaultHistoryLimit), database.MaxHistoryLimit)
	entries, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
