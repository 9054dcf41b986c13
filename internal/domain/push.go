package domain

import (
	"encoding/json"
	"time"
)

// DefaultPreferredTime is the reminder time assigned to new push subscriptions.
const DefaultPreferredTime = "19:00"

// NotificationTypes toggles individual reminder kinds.
type NotificationTypes struct {
	DailyReminder bool `json:"dailyReminder"`
	StreakWarning bool `json:"streakWarning"`
}

// PushSubscription is a user's browser push registration.
type PushSubscription struct {
	UserID            string
	Endpoint          string
	Subscription      json.RawMessage
	Enabled           bool
	PreferredTime     string
	NotificationTypes NotificationTypes
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
