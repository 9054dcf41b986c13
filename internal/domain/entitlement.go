package domain

import "time"

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// SubscriptionStatus is the stored lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// PlanType is the billing cadence of a premium subscription.
type PlanType string

const (
	PlanMonthly PlanType = "monthly"
	PlanYearly  PlanType = "yearly"
)

// Entitlement is the per-user subscription record.
type Entitlement struct {
	UserID                string
	Plan                  Plan
	PlanType              PlanType
	Status                SubscriptionStatus
	GatewaySubscriptionID string
	CurrentPeriodStart    *time.Time
	CurrentPeriodEnd      *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsPremium reports whether the entitlement grants premium access at now.
// A period end in the past wins over a stale "active" status.
func (e Entitlement) IsPremium(now time.Time) bool {
	if e.Plan != PlanPremium || e.Status != StatusActive {
		return false
	}
	return e.CurrentPeriodEnd == nil || e.CurrentPeriodEnd.After(now)
}
