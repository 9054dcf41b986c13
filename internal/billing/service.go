// Package billing tracks each user's subscription record and activates
// premium access after a signed payment callback.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/memomind/internal/domain"
)

var (
	ErrNotConfigured    = errors.New("payment gateway not configured")
	ErrInvalidPlan      = errors.New("invalid plan type")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Installment counts of a new subscription per plan type.
const (
	MonthlyTotalCount = 12
	YearlyTotalCount  = 1
)

// Store persists entitlements.
type Store interface {
	EnsureEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
	SaveEntitlement(ctx context.Context, e domain.Entitlement) error
}

// SubscriptionCreator opens a subscription at the payment gateway.
type SubscriptionCreator interface {
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error)
}

type Config struct {
	KeyID         string
	KeySecret     string
	PlanIDMonthly string
	PlanIDYearly  string
}

// Service implements subscription status, checkout and payment verification.
type Service struct {
	store   Store
	gateway SubscriptionCreator
	cfg     Config
	now     func() time.Time
}

func NewService(store Store, gateway SubscriptionCreator, cfg Config) *Service {
	return &Service{store: store, gateway: gateway, cfg: cfg, now: time.Now}
}

// Status is the entitlement summary returned to clients.
type Status struct {
	IsPremium        bool                      `json:"isPremium"`
	Plan             domain.Plan               `json:"plan"`
	Status           domain.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time                `json:"currentPeriodEnd"`
}

// Checkout identifies a subscription the client must complete payment for.
type Checkout struct {
	SubscriptionID string `json:"subscriptionId"`
	KeyID          string `json:"razorpayKeyId"`
}

// PaymentProof is the signed payment callback relayed by the client.
type PaymentProof struct {
	SubscriptionID string
	PaymentID      string
	Signature      string
}

// Status returns the user's entitlement, creating a free record on first use.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	e, err := s.store.EnsureEntitlement(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to load entitlement: %w", err)
	}
	return Status{
		IsPremium:        e.IsPremium(s.now()),
		Plan:             e.Plan,
		Status:           e.Status,
		CurrentPeriodEnd: e.CurrentPeriodEnd,
	}, nil
}

// IsPremium reports whether the user currently has premium access.
func (s *Service) IsPremium(ctx context.Context, userID string) (bool, error) {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.IsPremium, nil
}

// CreateCheckout opens a gateway subscription for the plan type.
func (s *Service) CreateCheckout(ctx context.Context, userID string, planType domain.PlanType) (Checkout, error) {
	var (
		planID     string
		totalCount int
	)
	switch planType {
	case domain.PlanMonthly:
		planID, totalCount = s.cfg.PlanIDMonthly, MonthlyTotalCount
	case domain.PlanYearly:
		planID, totalCount = s.cfg.PlanIDYearly, YearlyTotalCount
	default:
		return Checkout{}, ErrInvalidPlan
	}
	if s.cfg.KeyID == "" || s.cfg.KeySecret == "" || s.gateway == nil {
		return Checkout{}, ErrNotConfigured
	}
	if planID == "" {
		return Checkout{}, fmt.Errorf("%w: no plan id for %s", ErrNotConfigured, planType)
	}

	id, err := s.gateway.CreateSubscription(ctx, SubscriptionRequest{
		PlanID:         planID,
		CustomerNotify: 1,
		TotalCount:     totalCount,
		Notes: map[string]string{
			"userId":   userID,
			"planType": string(planType),
		},
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("failed to create subscription: %w", err)
	}
	return Checkout{SubscriptionID: id, KeyID: s.cfg.KeyID}, nil
}

// VerifyAndActivate checks the payment signature and grants premium for one
// billing period. An empty planType means monthly.
func (s *Service) VerifyAndActivate(ctx context.Context, userID string, proof PaymentProof, planType domain.PlanType) error {
	if s.cfg.KeySecret == "" {
		return ErrNotConfigured
	}
	if planType == "" {
		planType = domain.PlanMonthly
	}
	if planType != domain.PlanMonthly && planType != domain.PlanYearly {
		return ErrInvalidPlan
	}
	if !VerifySignature(s.cfg.KeySecret, proof) {
		return ErrInvalidSignature
	}

	start := s.now().UTC()
	end := start.AddDate(0, 1, 0)
	if planType == domain.PlanYearly {
		end = start.AddDate(1, 0, 0)
	}

	err := s.store.SaveEntitlement(ctx, domain.Entitlement{
		UserID:                userID,
		Plan:                  domain.PlanPremium,
		PlanType:              planType,
		Status:                domain.StatusActive,
		GatewaySubscriptionID: proof.SubscriptionID,
		CurrentPeriodStart:    &start,
		CurrentPeriodEnd:      &end,
	})
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "paymentID|subscriptionID".
func Sign(secret, paymentID, subscriptionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(paymentID + "|" + subscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether proof was signed with secret.
func VerifySignature(secret string, proof PaymentProof) bool {
	expected := Sign(secret, proof.PaymentID, proof.SubscriptionID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(proof.Signature))))
}
