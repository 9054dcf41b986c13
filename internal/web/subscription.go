package web

import (
	"net/http"

	"github.com/conorfennell/memomind/internal/billing"
	"github.com/conorfennell/memomind/internal/domain"
)

type createSubscriptionRequest struct {
	PlanType domain.PlanType `json:"planType" validate:"required,oneof=monthly yearly"`
}

// verifySubscriptionRequest is the payment callback relayed by the checkout
// widget.
type verifySubscriptionRequest struct {
	SubscriptionID string          `json:"razorpay_subscription_id" validate:"required"`
	PaymentID      string          `json:"razorpay_payment_id" validate:"required"`
	Signature      string          `json:"razorpay_signature" validate:"required"`
	PlanType       domain.PlanType `json:"planType" validate:"omitempty,oneof=monthly yearly"`
}

func (s *Server) handleCreateSubscription() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var req createSubscriptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err, "Failed to create subscription")
			return
		}
		if err := validateStruct(s.validate, req); err != nil {
			respondError(w, r, err, "Failed to create subscription")
			return
		}
		checkout, err := s.billing.CreateCheckout(r.Context(), userID, req.PlanType)
		if err != nil {
			respondError(w, r, err, "Failed to create subscription")
			return
		}
		writeJSON(w, http.StatusOK, checkout)
	}
}

// handleVerifySubscription activates premium after checking the payment
// signature. A mismatch is rejected outright.
func (s *Server) handleVerifySubscription() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		var req verifySubscriptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err, "Failed to verify payment")
			return
		}
		if err := validateStruct(s.validate, req); err != nil {
			respondError(w, r, err, "Failed to verify payment")
			return
		}
		proof := billing.PaymentProof{
			SubscriptionID: req.SubscriptionID,
			PaymentID:      req.PaymentID,
			Signature:      req.Signature,
		}
		if err := s.billing.VerifyAndActivate(r.Context(), userID, proof, req.PlanType); err != nil {
			respondError(w, r, err, "Failed to verify payment")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Subscription activated!"})
	}
}

func (s *Server) handleSubscriptionStatus() userHandler {
	return func(w http.ResponseWriter, r *http.Request, userID string) {
		status, err := s.billing.Status(r.Context(), userID)
		if err != nil {
			respondError(w, r, err, "Failed to fetch subscription status")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
