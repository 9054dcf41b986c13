package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/conorfennell/memomind/internal/domain"
)

type pushSubscriptionStatus struct {
	Subscribed        bool                     `json:"subscribed"`
	Enabled           bool                     `json:"enabled"`
	PreferredTime     string                   `json:"preferredTime"`
	NotificationTypes domain.NotificationTypes `json:"notificationTypes"`
}

// handleSavePushSubscription stores the browser PushSubscription JSON as sent.
func (s *Server) handleSavePushSubscription() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var raw json.RawMessage
		if err := decodeJSON(w, r, &raw); err != nil {
			respondError(w, r, err, "Failed to save subscription")
			return
		}
		var sub struct {
			Endpoint string `json:"endpoint"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil || strings.TrimSpace(sub.Endpoint) == "" {
			writeError(w, r, http.StatusBadRequest, CodeValidation, "Invalid subscription")
			return
		}
		if _, err := s.push.UpsertPushSubscription(r.Context(), userID, sub.Endpoint, raw); err != nil {
			respondError(w, r, err, "Failed to save subscription")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Subscription saved successfully"})
	}
}

func (s *Server) handleGetPushSubscription() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		sub, err := s.push.GetPushSubscription(r.Context(), userID)
		if err != nil {
			respondError(w, r, err, "Failed to fetch subscription")
			return
		}
		if sub == nil {
			writeJSON(w, http.StatusOK, map[string]bool{"subscribed": false})
			return
		}
		writeJSON(w, http.StatusOK, pushSubscriptionStatus{
			Subscribed:        true,
			Enabled:           sub.Enabled,
			PreferredTime:     sub.PreferredTime,
			NotificationTypes: sub.NotificationTypes,
		})
	}
}

func (s *Server) handleDeletePushSubscription() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		if err := s.push.DeletePushSubscription(r.Context(), userID); err != nil {
			respondError(w, r, err, "Failed to delete subscription")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Subscription removed"})
	}
}
