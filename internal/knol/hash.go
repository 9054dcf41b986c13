// Package knol fingerprints note content so repeated imports can recognise
// notes they already created.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/memomind/internal/domain"
)

// Normalize concatenates the note's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(note domain.NoteDraft) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		p = strings.TrimSpace(p)
		return p
	}

	// The newline keeps "go" + "routines" distinct from "gor" + "outines".
	return normalizePart(note.Title) + "\n" + normalizePart(note.Understanding)
}

// Hash normalizes the note and returns its SHA-256 hash as a hex string.
func Hash(note domain.NoteDraft) string {
	sum := sha256.Sum256([]byte(Normalize(note)))
	return fmt.Sprintf("%x", sum)
}
