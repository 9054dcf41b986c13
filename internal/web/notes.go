package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/conorfennell/memomind/internal/domain"
)

// updateNoteRequest keeps analysis raw so that an absent key can be told
// apart from an explicit null.
type updateNoteRequest struct {
	Title         string          `json:"title" validate:"required"`
	Understanding string          `json:"understanding" validate:"required"`
	Analysis      json.RawMessage `json:"analysis"`
}

func noteKey(r *http.Request, userID string) domain.NoteKey {
	return domain.NoteKey{ID: r.PathValue("id"), OwnerID: userID}
}

// handleListNotes returns the user's notes, newest first.
func (s *Server) handleListNotes() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		notes, err := s.notes.ListNotes(r.Context(), userID)
		if err != nil {
			respondError(w, r, err, "Failed to fetch notes")
			return
		}
		if notes == nil {
			notes = []domain.Note{}
		}
		writeJSON(w, http.StatusOK, notes)
	}
}

// handleCreateNote stores a new note for the user.
func (s *Server) handleCreateNote() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var draft domain.NoteDraft
		if err := decodeJSON(w, r, &draft); err != nil {
			respondError(w, r, err, "Failed to create note")
			return
		}
		draft.Title = strings.TrimSpace(draft.Title)
		draft.Understanding = strings.TrimSpace(draft.Understanding)
		if draft.Analysis != nil {
			draft.Analysis.Difficulty = domain.NormalizeDifficulty(draft.Analysis.Difficulty)
		}
		if err := validateStruct(s.validate, draft); err != nil {
			respondError(w, r, err, "Failed to create note")
			return
		}

		note, err := s.notes.CreateNote(r.Context(), domain.Note{
			OwnerID:       userID,
			Title:         draft.Title,
			Understanding: draft.Understanding,
			Analysis:      draft.Analysis,
		})
		if err != nil {
			respondError(w, r, err, "Failed to create note")
			return
		}
		s.events.Track(r.Context(), userID, EventNoteCreated, map[string]any{
			"note_id":      note.ID,
			"has_analysis": note.Analysis != nil,
		})
		writeJSON(w, http.StatusCreated, note)
	}
}

func (s *Server) handleGetNote() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		note, err := s.notes.FindNote(r.Context(), noteKey(r, userID))
		if err != nil {
			respondError(w, r, err, "Failed to fetch note")
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

// handleUpdateNote replaces title and understanding. The analysis is kept
// when the key is absent, cleared on null and replaced otherwise.
func (s *Server) handleUpdateNote() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var req updateNoteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err, "Failed to update note")
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Understanding = strings.TrimSpace(req.Understanding)
		if err := validateStruct(s.validate, req); err != nil {
			respondError(w, r, err, "Failed to update note")
			return
		}

		update := domain.NoteUpdate{Title: req.Title, Understanding: req.Understanding}
		switch {
		case len(req.Analysis) == 0:
			// keep the stored analysis
		case bytes.Equal(bytes.TrimSpace(req.Analysis), []byte("null")):
			update.ReplaceAnalysis = true
		default:
			var a domain.Analysis
			if err := json.Unmarshal(req.Analysis, &a); err != nil {
				respondError(w, r, &domain.ValidationError{Fields: []string{"analysis"}}, "Failed to update note")
				return
			}
			a.Difficulty = domain.NormalizeDifficulty(a.Difficulty)
			if err := validateStruct(s.validate, a); err != nil {
				respondError(w, r, err, "Failed to update note")
				return
			}
			update.ReplaceAnalysis = true
			update.Analysis = &a
		}

		note, err := s.notes.UpdateNote(r.Context(), noteKey(r, userID), update)
		if err != nil {
			respondError(w, r, err, "Failed to update note")
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

// handleReviewNote records one review of the note.
func (s *Server) handleReviewNote() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		note, err := s.practice.Review(r.Context(), noteKey(r, userID))
		if err != nil {
			respondError(w, r, err, "Failed to update review stats")
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

func (s *Server) handleDeleteNote() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		if err := s.notes.DeleteNote(r.Context(), noteKey(r, userID)); err != nil {
			respondError(w, r, err, "Failed to delete note")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
	}
}
