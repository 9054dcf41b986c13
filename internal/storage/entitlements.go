package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/memomind/internal/domain"
)

type entitlementRow struct {
	UserID                string         `db:"user_id"`
	Plan                  string         `db:"plan"`
	PlanType              sql.NullString `db:"plan_type"`
	Status                string         `db:"status"`
	GatewaySubscriptionID sql.NullString `db:"gateway_subscription_id"`
	CurrentPeriodStart    sql.NullInt64  `db:"current_period_start"`
	CurrentPeriodEnd      sql.NullInt64  `db:"current_period_end"`
	CreatedAt             int64          `db:"created_at"`
	UpdatedAt             int64          `db:"updated_at"`
}

func (r entitlementRow) toDomain() domain.Entitlement {
	return domain.Entitlement{
		UserID:                r.UserID,
		Plan:                  domain.Plan(r.Plan),
		PlanType:              domain.PlanType(r.PlanType.String),
		Status:                domain.SubscriptionStatus(r.Status),
		GatewaySubscriptionID: r.GatewaySubscriptionID.String,
		CurrentPeriodStart:    timeFromNull(r.CurrentPeriodStart),
		CurrentPeriodEnd:      timeFromNull(r.CurrentPeriodEnd),
		CreatedAt:             fromMillis(r.CreatedAt),
		UpdatedAt:             fromMillis(r.UpdatedAt),
	}
}

// GetEntitlement retrieves the subscription record of a user.
func (db *DB) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	var row entitlementRow
	err := db.conn.GetContext(ctx, &row, `
		SELECT user_id, plan, plan_type, status, gateway_subscription_id,
		       current_period_start, current_period_end, created_at, updated_at
		FROM entitlements WHERE user_id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Entitlement not found
		}
		return nil, fmt.Errorf("failed to find entitlement for user %s: %w", userID, err)
	}
	e := row.toDomain()
	return &e, nil
}

// EnsureEntitlement returns the user's record, creating a free/active one
// when none exists.
func (db *DB) EnsureEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	now := toMillis(db.now())
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, plan, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, domain.PlanFree, domain.StatusActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create default entitlement for user %s: %w", userID, err)
	}
	e, err := db.GetEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("entitlement for user %s vanished after insert", userID)
	}
	return e, nil
}

// SaveEntitlement inserts or replaces the subscription record of a user.
func (db *DB) SaveEntitlement(ctx context.Context, e domain.Entitlement) error {
	now := toMillis(db.now())
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, plan, plan_type, status, gateway_subscription_id,
		                          current_period_start, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = excluded.plan,
			plan_type = excluded.plan_type,
			status = excluded.status,
			gateway_subscription_id = excluded.gateway_subscription_id,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`,
		e.UserID,
		e.Plan,
		nullString(string(e.PlanType)),
		e.Status,
		nullString(e.GatewaySubscriptionID),
		nullMillis(e.CurrentPeriodStart),
		nullMillis(e.CurrentPeriodEnd),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save entitlement for user %s: %w", e.UserID, err)
	}
	return nil
}
