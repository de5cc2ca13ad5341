package web

import "net/http"

// handleListTables returns every catalog table.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Tables())
}

// handleListProcedures returns every catalog procedure.
func (s *Server) handleListProcedures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Procedures())
}
