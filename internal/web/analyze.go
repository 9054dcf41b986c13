package web

import (
	"net/http"
	"strings"
)

type analyzeRequest struct {
	Title         string `json:"title" validate:"required"`
	Understanding string `json:"understanding" validate:"required"`
}

// handleAnalyze runs the analysis gateway on a note draft. Input is checked
// before the entitlement lookup, which in turn precedes the rate limit.
func (s *Server) handleAnalyze() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var req analyzeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err, "Internal server error")
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Understanding = strings.TrimSpace(req.Understanding)
		if err := validateStruct(s.validate, req); err != nil {
			respondError(w, r, err, "Internal server error")
			return
		}

		if s.opts.RequirePremium {
			premium, err := s.billing.IsPremium(r.Context(), userID)
			if err != nil {
				respondError(w, r, err, "Failed to check subscription")
				return
			}
			if !premium {
				writeError(w, r, http.StatusForbidden, CodePremiumRequired, "AI analysis requires a premium subscription")
				return
			}
		}

		if s.limiter != nil && !s.limiter.Allow(r.Context(), "analyze:"+userID) {
			writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "Too many analysis requests, try again later")
			return
		}

		result, err := s.analyzer.Analyze(r.Context(), req.Title, req.Understanding)
		if err != nil {
			respondError(w, r, err, "Internal server error")
			return
		}
		s.events.Track(r.Context(), userID, EventAnalysisUsed, map[string]any{
			"difficulty":     result.Difficulty,
			"accuracy_score": result.AccuracyScore,
		})
		writeJSON(w, http.StatusOK, result)
	}
}
