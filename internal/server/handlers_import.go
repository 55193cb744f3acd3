package server

import (
	"net/http"
)

// handleImport ingests an archived training log export. The body is the raw
// export file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "import not configured"})
		return
	}

	result, err := s.importer.Import(r.Context(), identityFrom(r).UserID, r.Body)
	if err != nil {
		s.log.Error("import failed", "error", err)
		status := http.StatusBadRequest
		if result != nil && result.SessionsInserted > 0 {
			// Partial import: some sessions landed before the failure.
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "partial": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
