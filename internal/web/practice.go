package web

import "net/http"

// handleDailyPractice returns today's practice batch, or an empty list when
// nothing is due.
func (s *Server) handleDailyPractice() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		batch, err := s.practice.DailyBatch(r.Context(), userID)
		if err != nil {
			respondError(w, r, err, "Failed to fetch practice notes")
			return
		}
		if len(batch) > 0 {
			s.events.Track(r.Context(), userID, EventDailyPracticeStarted, map[string]any{
				"note_count": len(batch),
			})
		}
		writeJSON(w, http.StatusOK, batch)
	}
}

func (s *Server) handlePracticeStatus() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		status, err := s.practice.Status(r.Context(), userID)
		if err != nil {
			respondError(w, r, err, "Failed to fetch practice status")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
