package server

import "net/http"

// handleApplyRecurring runs one generation sweep on demand.
func (s *Server) handleApplyRecurring(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.ApplyAt(r.Context(), s.clock.Now())
	if err != nil {
		s.log.Error("generation run failed",
			"error", err,
			"request_id", RequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "generation run failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inserted": report.Inserted,
		"status":   "ok",
	})
}
