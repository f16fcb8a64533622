package accounts

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signalhq/signal/internal/api/respond"
	"github.com/signalhq/signal/internal/tenancy"
	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

// SettingsStore is the slice of the accounts store the settings
// endpoints need.
type SettingsStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateProfile(ctx context.Context, accountID, name, productDescription, differentiators string) error
	AllPromptOverrides(ctx context.Context, accountID string) (map[string]map[string]string, error)
	UpsertPromptOverride(ctx context.Context, accountID, signalType, key, value string) error
}

// Handler serves the tenant settings surface: the company profile that
// feeds prompt generation, and per-type prompt overrides. Admin only.
type Handler struct {
	store  SettingsStore
	logger *logging.Logger
}

func NewHandler(store SettingsStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts GET and PUT behind the session middleware.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requireSession)
	r.Get("/", h.Get)
	r.Put("/", h.Update)
	return r
}

type accountProfile struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	ProductDescription string `json:"product_description"`
	Differentiators    string `json:"differentiators"`
}

type settingsView struct {
	Account accountProfile               `json:"account"`
	Prompts map[string]map[string]string `json:"prompts"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	account, err := h.store.GetAccount(r.Context(), sess.AccountID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	overrides, err := h.store.AllPromptOverrides(r.Context(), sess.AccountID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if overrides == nil {
		overrides = map[string]map[string]string{}
	}

	respond.JSON(w, http.StatusOK, settingsView{
		Account: accountProfile{
			ID:                 account.ID,
			Name:               account.Name,
			ProductDescription: account.ProductDescription,
			Differentiators:    account.Differentiators,
		},
		Prompts: overrides,
	})
}

type updateSettingsRequest struct {
	Account *accountProfile              `json:"account"`
	Prompts map[string]map[string]string `json:"prompts"`
}

// Update writes the profile and any prompt overrides in one call. Both
// sections are optional; an empty body is a no-op.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.logger, fault.Validation("invalid request body", err))
		return
	}

	if req.Account != nil {
		if req.Account.Name == "" {
			respond.Error(w, h.logger, fault.Validation("account name is required", nil))
			return
		}
		if err := h.store.UpdateProfile(r.Context(), sess.AccountID,
			req.Account.Name, req.Account.ProductDescription, req.Account.Differentiators); err != nil {
			respond.Error(w, h.logger, err)
			return
		}
	}

	for signalType, keys := range req.Prompts {
		for key, value := range keys {
			if err := h.store.UpsertPromptOverride(r.Context(), sess.AccountID, signalType, key, value); err != nil {
				respond.Error(w, h.logger, err)
				return
			}
		}
	}

	h.logger.Info("settings updated", "account_id", sess.AccountID)
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (tenancy.Session, bool) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return tenancy.Session{}, false
	}
	if !sess.IsAdmin() {
		respond.JSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
		return tenancy.Session{}, false
	}
	return sess, true
}
