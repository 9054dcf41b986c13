package web

import (
	"context"
	"log/slog"
)

// Product events emitted by the API.
const (
	EventNoteCreated          = "note_created"
	EventAnalysisUsed         = "ai_analysis_used"
	EventDailyPracticeStarted = "daily_practice_started"
)

// EventTracker forwards product analytics events. Tracking is best effort
// and must not fail the request that emitted the event.
type EventTracker interface {
	Track(ctx context.Context, userID, event string, props map[string]any)
}

// LogTracker writes events to the default slog logger.
type LogTracker struct{}

func (LogTracker) Track(ctx context.Context, userID, event string, props map[string]any) {
	args := []any{"user_id", userID, "event", event, "request_id", RequestIDFromContext(ctx)}
	for k, v := range props {
		args = append(args, k, v)
	}
	slog.InfoContext(ctx, "product_event", args...)
}
