// Package reminder nudges users who have not finished their daily practice.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/conorfennell/memomind/internal/domain"
	"github.com/conorfennell/memomind/internal/practice"
)

// Kind names a reminder type.
type Kind string

const (
	KindDailyReminder Kind = "daily_reminder"
	KindStreakWarning Kind = "streak_warning"
)

// Reminder is a notification about to be delivered to a user.
type Reminder struct {
	Kind  Kind
	Title string
	Body  string
}

// Notifier delivers reminders to a user's registered device.
type Notifier interface {
	Notify(ctx context.Context, sub domain.PushSubscription, r Reminder) error
}

// Subscriptions lists push registrations.
type Subscriptions interface {
	ListEnabledPushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error)
}

// StatusReader reports a user's practice status for the current day.
type StatusReader interface {
	Status(ctx context.Context, ownerID string) (practice.Status, error)
}

// Scheduler runs the reminder job at the top of every hour.
type Scheduler struct {
	cron     *gocron.Scheduler
	subs     Subscriptions
	status   StatusReader
	notifier Notifier
	location *time.Location
	now      func() time.Time
}

// New creates a scheduler whose preferred times are read in loc.
func New(subs Subscriptions, status StatusReader, notifier Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(loc),
		subs:     subs,
		status:   status,
		notifier: notifier,
		location: loc,
		now:      time.Now,
	}
}

// Start schedules the hourly job without blocking.
func (s *Scheduler) Start() error {
	_, err := s.cron.Cron("0 * * * *").Do(func() {
		sent, err := s.RunOnce(context.Background())
		if err != nil {
			slog.Error("Reminder run failed", "error", err)
			return
		}
		slog.Info("Reminder run finished", "sent", sent)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.cron.StartAsync()
	return nil
}

// Stop terminates the scheduled job.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce sends the reminders due in the current hour and returns how many
// were delivered. Failures for one user do not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	subs, err := s.subs.ListEnabledPushSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	hour := s.now().In(s.location).Hour()
	sent := 0
	for _, sub := range subs {
		preferred, err := PreferredHour(sub.PreferredTime)
		if err != nil {
			slog.Warn("Skipping push subscription with bad preferred time",
				"user_id", sub.UserID,
				"preferred_time", sub.PreferredTime,
				"error", err)
			continue
		}
		if preferred != hour {
			continue
		}

		st, err := s.status.Status(ctx, sub.UserID)
		if err != nil {
			slog.Error("Failed to read practice status", "user_id", sub.UserID, "error", err)
			continue
		}
		r, ok := Choose(sub.NotificationTypes, st)
		if !ok {
			continue
		}
		if err := s.notifier.Notify(ctx, sub, r); err != nil {
			slog.Error("Failed to send reminder", "user_id", sub.UserID, "kind", r.Kind, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Choose picks the reminder for a user with the given status, if any.
// Nothing is sent once the day is complete or when no note is due.
func Choose(types domain.NotificationTypes, st practice.Status) (Reminder, bool) {
	if st.Completed || st.NotesNeedingReview == 0 {
		return Reminder{}, false
	}
	if st.ReviewedToday == 0 && types.StreakWarning {
		return Reminder{
			Kind:  KindStreakWarning,
			Title: "Don't break your streak!",
			Body:  fmt.Sprintf("You haven't practiced today. %d notes are waiting for you.", st.NotesNeedingReview),
		}, true
	}
	if types.DailyReminder {
		return Reminder{
			Kind:  KindDailyReminder,
			Title: "Time for your daily practice",
			Body:  fmt.Sprintf("Review %d more note(s) to finish today's practice.", practice.DailyQuota-st.ReviewedToday),
		}, true
	}
	return Reminder{}, false
}

// PreferredHour parses the hour of an "HH:MM" time.
func PreferredHour(hhmm string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return hour, nil
}

// LogNotifier writes reminders to the structured log. It stands in for a
// push transport.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, sub domain.PushSubscription, r Reminder) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Reminder",
		"user_id", sub.UserID,
		"endpoint", sub.Endpoint,
		"kind", r.Kind,
		"title", r.Title,
		"body", r.Body)
	return nil
}
