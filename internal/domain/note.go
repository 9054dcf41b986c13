package domain

import (
	"strings"
	"time"
)

// NoteKey identifies a note. Every store operation on a single note takes
// both parts so that a foreign note is indistinguishable from a missing one.
type NoteKey struct {
	ID      string
	OwnerID string
}

// Note is a user's learning record.
type Note struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"userId"`
	Title          string     `json:"title"`
	Understanding  string     `json:"understanding"`
	Analysis       *Analysis  `json:"analysis"`
	LastReviewedAt *time.Time `json:"lastReviewedAt"`
	ReviewCount    int        `json:"reviewCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// SourceHash is set on notes created by a bulk import.
	SourceHash string `json:"-"`
}

// Key returns the two-part key of the note.
func (n Note) Key() NoteKey {
	return NoteKey{ID: n.ID, OwnerID: n.OwnerID}
}

// Difficulty labels produced by the analysis gateway.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Analysis is the AI feedback attached to a note. A later analysis replaces
// the whole value.
type Analysis struct {
	CleanedExplanation     string      `json:"cleaned_explanation"`
	KeyPointsUnderstood    []string    `json:"key_points_understood"`
	MissingOrUnclearPoints []string    `json:"missing_or_unclear_points"`
	SimpleSummary          string      `json:"simple_summary"`
	Difficulty             string      `json:"difficulty" validate:"oneof=Easy Medium Hard"`
	AccuracyScore          int         `json:"accuracy_score" validate:"min=0,max=100"`
	NextConceptsToLearn    []string    `json:"next_concepts_to_learn"`
	QuickQuiz              []QuizEntry `json:"quick_quiz"`
}

// NormalizeDifficulty maps a difficulty label to its canonical spelling,
// ignoring case and surrounding space. Unknown labels are returned unchanged.
func NormalizeDifficulty(d string) string {
	for _, known := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if strings.EqualFold(strings.TrimSpace(d), known) {
			return known
		}
	}
	return d
}

// QuizEntry is a single question and answer pair.
type QuizEntry struct {
	Question string `json:"q"`
	Answer   string `json:"answer"`
}

// NoteUpdate replaces the content of a note. The stored analysis is only
// written when ReplaceAnalysis is set, in which case a nil Analysis clears it.
type NoteUpdate struct {
	Title           string
	Understanding   string
	ReplaceAnalysis bool
	Analysis        *Analysis
}

// NoteDraft carries the editable content of a note.
type NoteDraft struct {
	Title         string    `json:"title" validate:"required"`
	Understanding string    `json:"understanding" validate:"required"`
	Analysis      *Analysis `json:"analysis,omitempty"`
}
