package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/memomind/internal/domain"
)

const pushColumns = `user_id, endpoint, subscription, enabled, preferred_time, daily_reminder, streak_warning, created_at, updated_at`

type pushRow struct {
	UserID        string `db:"user_id"`
	Endpoint      string `db:"endpoint"`
	Subscription  string `db:"subscription"`
	Enabled       bool   `db:"enabled"`
	PreferredTime string `db:"preferred_time"`
	DailyReminder bool   `db:"daily_reminder"`
	StreakWarning bool   `db:"streak_warning"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r pushRow) toDomain() domain.PushSubscription {
	return domain.PushSubscription{
		UserID:        r.UserID,
		Endpoint:      r.Endpoint,
		Subscription:  json.RawMessage(r.Subscription),
		Enabled:       r.Enabled,
		PreferredTime: r.PreferredTime,
		NotificationTypes: domain.NotificationTypes{
			DailyReminder: r.DailyReminder,
			StreakWarning: r.StreakWarning,
		},
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

// UpsertPushSubscription stores the browser registration of a user and
// re-enables it. Preferred time and notification toggles survive updates.
func (db *DB) UpsertPushSubscription(ctx context.Context, userID, endpoint string, raw json.RawMessage) (*domain.PushSubscription, error) {
	now := toMillis(db.now())
	var row pushRow
	err := db.conn.GetContext(ctx, &row, `
		INSERT INTO push_subscriptions (user_id, endpoint, subscription, enabled, preferred_time,
		                                daily_reminder, streak_warning, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, 1, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			endpoint = excluded.endpoint,
			subscription = excluded.subscription,
			enabled = 1,
			updated_at = excluded.updated_at
		RETURNING `+pushColumns,
		userID, endpoint, string(raw), domain.DefaultPreferredTime, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save push subscription for user %s: %w", userID, err)
	}
	s := row.toDomain()
	return &s, nil
}

// GetPushSubscription retrieves the push registration of a user.
func (db *DB) GetPushSubscription(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	var row pushRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+pushColumns+` FROM push_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Subscription not found
		}
		return nil, fmt.Errorf("failed to find push subscription for user %s: %w", userID, err)
	}
	s := row.toDomain()
	return &s, nil
}

// DeletePushSubscription removes the push registration of a user, if any.
func (db *DB) DeletePushSubscription(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete push subscription for user %s: %w", userID, err)
	}
	return nil
}

// ListEnabledPushSubscriptions retrieves every enabled push registration.
func (db *DB) ListEnabledPushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	var rows []pushRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+pushColumns+` FROM push_subscriptions WHERE enabled = 1 ORDER BY user_id
	`); err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	subs := make([]domain.PushSubscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}
