package domain

import (
	"testing"
	"time"
)

func TestEntitlementIsPremium(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	testCases := []struct {
		name        string
		entitlement Entitlement
		expected    bool
	}{
		{
			name:        "free plan",
			entitlement: Entitlement{Plan: PlanFree, Status: StatusActive},
			expected:    false,
		},
		{
			name:        "premium without period end",
			entitlement: Entitlement{Plan: PlanPremium, Status: StatusActive},
			expected:    true,
		},
		{
			name:        "premium with future period end",
			entitlement: Entitlement{Plan: PlanPremium, Status: StatusActive, CurrentPeriodEnd: &future},
			expected:    true,
		},
		{
			name:        "lapsed period overrides active status",
			entitlement: Entitlement{Plan: PlanPremium, Status: StatusActive, CurrentPeriodEnd: &past},
			expected:    false,
		},
		{
			name:        "period end equal to now is lapsed",
			entitlement: Entitlement{Plan: PlanPremium, Status: StatusActive, CurrentPeriodEnd: &now},
			expected:    false,
		},
		{
			name:        "cancelled premium",
			entitlement: Entitlement{Plan: PlanPremium, Status: StatusCancelled, CurrentPeriodEnd: &future},
			expected:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entitlement.IsPremium(now); got != tc.expected {
				t.Errorf("Expected IsPremium to be %v, but got %v", tc.expected, got)
			}
		})
	}
}
