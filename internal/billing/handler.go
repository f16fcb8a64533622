package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalhq/signal/internal/accounts"
	"github.com/signalhq/signal/internal/api/respond"
	"github.com/signalhq/signal/internal/tenancy"
	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

// PlanStore is the slice of the accounts store billing needs.
type PlanStore interface {
	GetAccount(ctx context.Context, id string) (*accounts.Account, error)
	SetPlan(ctx context.Context, accountID, plan string) error
	SetStripeCustomer(ctx context.Context, accountID, customerID string) error
	SetPlanByStripeCustomer(ctx context.Context, customerID, plan string) error
}

// QuotaInvalidator drops cached quota state after a plan change.
type QuotaInvalidator interface {
	Invalidate(ctx context.Context, accountID string)
}

// Handler exposes the two billing endpoints: authenticated checkout
// creation and the public Stripe webhook.
type Handler struct {
	checkout      *CheckoutService
	store         PlanStore
	quota         QuotaInvalidator
	webhookSecret string
	logger        *logging.Logger
}

func NewHandler(checkout *CheckoutService, store PlanStore, quota QuotaInvalidator, webhookSecret string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		checkout:      checkout,
		store:         store,
		quota:         quota,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Routes mounts /create-checkout (behind requireSession) and /webhook.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/create-checkout", h.CreateCheckout)
	})
	r.Post("/webhook", h.Webhook)
	return r
}

// CreateCheckout starts a premium upgrade. Admin only; an account
// already on premium is rejected before Stripe is involved.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !sess.IsAdmin() {
		respond.JSON(w, http.StatusForbidden, map[string]string{"error": "only account admins can upgrade"})
		return
	}
	if h.checkout == nil || !h.checkout.Configured() {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "billing is not configured"})
		return
	}

	account, err := h.store.GetAccount(r.Context(), sess.AccountID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if account.Plan == accounts.PlanPremium {
		respond.Error(w, h.logger, fault.Validation("account is already on premium", nil))
		return
	}

	checkoutURL, err := h.checkout.CreateSession(r.Context(), sess.AccountID, sess.Email)
	if err != nil {
		respond.Error(w, h.logger, fault.Upstream("checkout session creation failed", err))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// stripeEvent is the webhook envelope; Object carries the fields of
// whichever object type the event wraps.
type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID           string            `json:"id"`
			Customer     string            `json:"customer"`
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook handles Stripe events. Unknown event types are acknowledged
// so Stripe stops retrying them.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !verifyStripeSignature(h.webhookSecret, payload, r.Header.Get("Stripe-Signature")) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(r.Context(), evt)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(r.Context(), evt)
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, evt stripeEvent) {
	accountID := evt.Data.Object.Metadata["account_id"]
	if accountID == "" {
		h.logger.Warn("checkout completed without account metadata", "event_id", evt.ID)
		return
	}

	if err := h.store.SetPlan(ctx, accountID, accounts.PlanPremium); err != nil {
		h.logger.Error("failed to upgrade plan", "account_id", accountID, "error", err)
		return
	}
	if customer := evt.Data.Object.Customer; customer != "" {
		if err := h.store.SetStripeCustomer(ctx, accountID, customer); err != nil {
			h.logger.Warn("failed to link stripe customer", "account_id", accountID, "error", err)
		}
	}
	if h.quota != nil {
		h.quota.Invalidate(ctx, accountID)
	}
	h.logger.Info("account upgraded to premium", "account_id", accountID, "event_id", evt.ID)
}

func (h *Handler) handleSubscriptionDeleted(ctx context.Context, evt stripeEvent) {
	accountID := evt.Data.Object.Metadata["account_id"]

	var err error
	if accountID != "" {
		err = h.store.SetPlan(ctx, accountID, accounts.PlanFree)
	} else if evt.Data.Object.Customer != "" {
		err = h.store.SetPlanByStripeCustomer(ctx, evt.Data.Object.Customer, accounts.PlanFree)
	} else {
		h.logger.Warn("subscription deleted with no tenant reference", "event_id", evt.ID)
		return
	}
	if err != nil {
		h.logger.Error("failed to downgrade plan", "event_id", evt.ID, "error", err)
		return
	}
	if h.quota != nil && accountID != "" {
		h.quota.Invalidate(ctx, accountID)
	}
	h.logger.Info("account downgraded to free", "event_id", evt.ID)
}

// verifyStripeSignature checks the Stripe-Signature header: HMAC-SHA256
// over "timestamp.payload", header form t=<ts>,v1=<sig>[,v0=...], with a
// 5 minute timestamp tolerance. An empty secret bypasses verification
// for local development.
func verifyStripeSignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
