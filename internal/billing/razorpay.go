package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"resty.dev/v3"
)

const DefaultRazorpayBaseURL = "https://api.razorpay.com"

// RazorpayClient creates subscriptions through the Razorpay REST API.
type RazorpayClient struct {
	httpClient *resty.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret string) *RazorpayClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultRazorpayBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetBasicAuth(keyID, keySecret)
	client.SetHeader("Content-Type", "application/json")

	return &RazorpayClient{httpClient: client}
}

func (c *RazorpayClient) Close() error {
	return c.httpClient.Close()
}

// SubscriptionRequest is the body of POST /v1/subscriptions.
type SubscriptionRequest struct {
	PlanID         string            `json:"plan_id"`
	CustomerNotify int               `json:"customer_notify"`
	TotalCount     int               `json:"total_count"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type subscriptionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateSubscription creates a subscription and returns its id.
func (c *RazorpayClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error) {
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/subscriptions")
	if err != nil {
		return "", fmt.Errorf("failed to call razorpay: %w", err)
	}
	if response.IsError() {
		return "", fmt.Errorf("razorpay error %d: %s", response.StatusCode(), response.String())
	}

	var body subscriptionResponse
	if err := json.Unmarshal([]byte(response.String()), &body); err != nil {
		return "", fmt.Errorf("failed to decode razorpay subscription: %w", err)
	}
	if body.ID == "" {
		return "", errors.New("razorpay returned a subscription without id")
	}
	return body.ID, nil
}
