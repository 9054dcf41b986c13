package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record is absent or owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when no authenticated principal is present.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports missing or malformed input. It is raised before
// any store access.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}
