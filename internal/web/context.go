package web

import (
	"context"
	"net/http"
)

// acquireSlot takes an export slot when a limiter is configured. The
// returned release func is always safe to call.
func (s *Server) acquireSlot(ctx context.Context) (func(), error) {
	if s.deps.Limiter == nil {
		return func() {}, nil
	}
	if err := s.deps.Limiter.Acquire(ctx); err != nil {
		return func() {}, err
	}
	return s.deps.Limiter.Release, nil
}

// operationContext bounds a pipeline call by the configured export timeout.
// The request context is the parent, so a client disconnect cancels the run.
func (s *Server) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.Export.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.cfg.Export.Timeout)
}
