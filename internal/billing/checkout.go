// Package billing holds the Stripe seam: subscription checkout session
// creation and the webhook that flips account plans. Stripe is called
// over raw HTTPS with form-encoded bodies; no SDK.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalhq/signal/pkg/logging"
)

var checkoutTracer = otel.Tracer("signal.internal.billing.checkout")

// CheckoutService creates Stripe Checkout Sessions for the premium
// subscription. The account id rides in session metadata so the webhook
// can resolve the tenant without any extra state.
type CheckoutService struct {
	secretKey  string
	priceID    string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewCheckoutService(secretKey, priceID, successURL, cancelURL string, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutService{
		secretKey:  secretKey,
		priceID:    priceID,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *CheckoutService) WithBaseURL(baseURL string) *CheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// Configured reports whether checkout can be attempted at all.
func (s *CheckoutService) Configured() bool {
	return s.secretKey != "" && s.priceID != ""
}

// CreateSession opens a subscription checkout session for the account
// and returns the hosted payment URL.
func (s *CheckoutService) CreateSession(ctx context.Context, accountID, customerEmail string) (string, error) {
	ctx, span := checkoutTracer.Start(ctx, "stripe.create_checkout_session",
		trace.WithAttributes(attribute.String("signal.account_id", accountID)))
	defer span.End()

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", s.priceID)
	form.Set("line_items[0][quantity]", "1")
	if s.successURL != "" {
		form.Set("success_url", s.successURL)
	}
	if s.cancelURL != "" {
		form.Set("cancel_url", s.cancelURL)
	}
	if customerEmail != "" {
		form.Set("customer_email", customerEmail)
	}

	// Metadata for webhook processing: on both the session and the
	// subscription it creates.
	form.Set("metadata[account_id]", accountID)
	form.Set("subscription_data[metadata][account_id]", accountID)

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("billing: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("billing: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("billing: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("billing: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("billing: stripe response missing checkout url")
	}

	s.logger.Info("checkout session created", "account_id", accountID, "session_id", parsed.ID)
	return parsed.URL, nil
}
