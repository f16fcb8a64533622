package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalhq/signal/internal/api/respond"
	"github.com/signalhq/signal/internal/completion"
	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/internal/tenancy"
	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

// linkPlaceholder in a suggested email body is replaced with the live
// prospect URL before sending.
const linkPlaceholder = "[SIGNAL_LINK]"

// QuotaGate limits how many completed responses a free-plan rep can
// read. VisibleLimit returns -1 for unlimited.
type QuotaGate interface {
	VisibleLimit(ctx context.Context, accountID string) (int, error)
}

// EmailSender delivers a single outreach email. Implemented in notify.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Handler exposes the signal lifecycle over HTTP. Rep-facing routes
// require a session; prospect-facing routes are keyed by slug only.
type Handler struct {
	store     *Store
	generator *Generator
	engine    *Engine
	analyzer  *Analyzer
	gateway   completionGateway
	registry  *prompts.Registry
	quota     QuotaGate
	mailer    EmailSender
	baseURL   string
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(store *Store, generator *Generator, engine *Engine, analyzer *Analyzer,
	gateway completionGateway, registry *prompts.Registry, quota QuotaGate, mailer EmailSender,
	baseURL string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:     store,
		generator: generator,
		engine:    engine,
		analyzer:  analyzer,
		gateway:   gateway,
		registry:  registry,
		quota:     quota,
		mailer:    mailer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// Routes mounts the signal endpoints. requireSession wraps the
// rep-facing subset; prospect routes stay public.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", h.List)
		r.Post("/generate", h.Generate)
		r.Post("/generate-landing", h.GenerateLanding)
		r.Post("/{id}/finalize", h.Finalize)
		r.Post("/{id}/send", h.Send)
	})

	r.Get("/s/{slug}", h.PublicPage)
	r.Post("/track-open", h.TrackOpen)
	r.Post("/next-question", h.NextQuestion)
	r.Post("/submit-response", h.SubmitResponse)

	return r
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.logger, fault.Validation("invalid request body", err))
		return
	}

	result, err := h.generator.Generate(r.Context(), sess.UserID, sess.AccountID, req)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

type landingRequest struct {
	ProspectCompany   string `json:"prospect_company"`
	ProspectFirstName string `json:"prospect_first_name"`
	Field             string `json:"field"`
}

// GenerateLanding produces landing-intro or value-prop copy from the
// account's configured product context.
func (h *Handler) GenerateLanding(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req landingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.logger, fault.Validation("invalid request body", err))
		return
	}
	if strings.TrimSpace(req.ProspectCompany) == "" {
		respond.Error(w, h.logger, fault.Validation("prospect company is required", nil))
		return
	}

	accountContext, err := h.registry.FullAccountContextBlock(r.Context(), sess.AccountID)
	if err != nil {
		respond.Error(w, h.logger, fault.Internal("failed to load account context", err))
		return
	}
	if strings.TrimSpace(accountContext) == "" {
		respond.Error(w, h.logger, fault.Validation(
			"account settings not configured; add a company profile first", nil))
		return
	}

	isIntro := req.Field == "landing_intro"
	systemPrompt := prompts.ValuePropSystemPrompt
	kind := "the value proposition"
	if isIntro {
		systemPrompt = prompts.LandingIntroSystemPrompt
		kind = "the landing page intro"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Account context:\n%s\n\n", accountContext)
	fmt.Fprintf(&b, "Prospect company: %s\n", req.ProspectCompany)
	if req.ProspectFirstName != "" {
		fmt.Fprintf(&b, "Prospect first name: %s\n", req.ProspectFirstName)
	}
	fmt.Fprintf(&b, "\nGenerate %s. Return JSON: { \"text\": \"...\" }", kind)

	raw, err := h.gateway.CompleteJSON(r.Context(), systemPrompt, b.String(), completion.Options{
		Temperature: 0.7,
		Operation:   "landing_copy",
	})
	if err != nil {
		respond.Error(w, h.logger, fault.Upstream("copy generation failed", err))
		return
	}
	var parsed struct {
		Text string `json:"text"`
	}
	if err := completion.DecodeInto(raw, &parsed); err != nil {
		respond.Error(w, h.logger, fault.Upstream("copy generation returned an unexpected payload", err))
		return
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		respond.Error(w, h.logger, fault.Upstream("copy generation returned empty text", nil))
		return
	}

	if isIntro {
		respond.JSON(w, http.StatusOK, map[string]string{"landing_intro": text})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"value_prop": text})
}

// Finalize marks the rep's signal as sent. Ownership is enforced in the
// update predicate, so another rep's id behaves like a missing one.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateStatusOwned(r.Context(), id, sess.UserID, StatusSent); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type sendRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
}

// Send emails the suggested outreach to the prospect, substituting the
// live link, and flips the signal to sent.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if h.mailer == nil {
		respond.Error(w, h.logger, fault.Internal("email delivery is not configured", nil))
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.logger, fault.Validation("invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respond.Error(w, h.logger, fault.Validation("recipient email is required", nil))
		return
	}

	sig, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if sig.UserID != sess.UserID {
		respond.Error(w, h.logger, fault.ErrNotFound)
		return
	}

	body := strings.TrimSpace(sig.Content.SuggestedEmail)
	if body == "" {
		respond.Error(w, h.logger, fault.Validation("signal has no suggested email", nil))
		return
	}
	body = strings.ReplaceAll(body, linkPlaceholder, h.baseURL+"/s/"+sig.Slug)

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Quick one for you, %s", sig.ProspectFirstName)
	}

	if err := h.mailer.Send(r.Context(), req.Email, subject, body); err != nil {
		respond.Error(w, h.logger, fault.Upstream("email delivery failed", err))
		return
	}
	if err := h.store.UpdateStatusOwned(r.Context(), sig.ID, sess.UserID, StatusSent); err != nil {
		// The email went out; report success but keep a trace.
		h.logger.Warn("sent email but failed to update status", "signal_id", sig.ID, "error", err)
	}
	h.logger.Info("signal emailed", "signal_id", sig.ID, "account_id", sess.AccountID)
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// publicPageView is the prospect-facing payload. Deal-context fields the
// rep entered never leave the building.
type publicPageView struct {
	SignalID          string      `json:"signal_id"`
	Slug              string      `json:"slug"`
	SignalType        string      `json:"signal_type"`
	ProspectFirstName string      `json:"prospect_first_name"`
	ProspectCompany   string      `json:"prospect_company"`
	ProspectLogoURL   string      `json:"prospect_logo_url,omitempty"`
	Content           PageContent `json:"content"`
}

func (h *Handler) PublicPage(w http.ResponseWriter, r *http.Request) {
	sig, err := h.store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if sig.IsExpired(h.now()) {
		respond.JSON(w, http.StatusGone, map[string]bool{"expired": true})
		return
	}
	respond.JSON(w, http.StatusOK, publicPageView{
		SignalID:          sig.ID,
		Slug:              sig.Slug,
		SignalType:        sig.Type,
		ProspectFirstName: sig.ProspectFirstName,
		ProspectCompany:   sig.ProspectCompany,
		ProspectLogoURL:   sig.ProspectLogoURL,
		Content:           sig.Content,
	})
}

type trackOpenRequest struct {
	SignalID string `json:"signal_id"`
}

func (h *Handler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	var req trackOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SignalID == "" {
		respond.Error(w, h.logger, fault.Validation("signal_id is required", err))
		return
	}

	sig, err := h.store.GetByID(r.Context(), req.SignalID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if !sig.IsExpired(h.now()) {
		if _, err := h.store.TrackOpen(r.Context(), sig.ID, h.now().UTC()); err != nil {
			respond.Error(w, h.logger, fault.Persistence("failed to track open", err))
			return
		}
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type nextQuestionRequest struct {
	Slug    string `json:"slug"`
	Answers []QA   `json:"answers"`
}

// stepView is the wire shape the prospect page consumes.
type stepView struct {
	NextQuestion    *Question `json:"next_question"`
	IsComplete      bool      `json:"is_complete"`
	OpenFieldPrompt string    `json:"open_field_prompt,omitempty"`
}

func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	var req nextQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" || req.Answers == nil {
		respond.Error(w, h.logger, fault.Validation("slug and answers are required", err))
		return
	}

	sig, err := h.store.GetBySlug(r.Context(), req.Slug)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if sig.IsExpired(h.now()) {
		respond.Error(w, h.logger, fault.ErrExpired)
		return
	}

	result, err := h.engine.NextStep(r.Context(), sig, req.Answers)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, stepView{
		NextQuestion:    result.NextQuestion,
		IsComplete:      result.State != StateCollecting,
		OpenFieldPrompt: result.OpenFieldPrompt,
	})
}

type submitRequest struct {
	SignalID string `json:"signal_id"`
	Answers  []QA   `json:"answers"`
	OptedOut bool   `json:"opted_out"`
}

func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SignalID == "" {
		respond.Error(w, h.logger, fault.Validation("signal_id is required", err))
		return
	}

	sig, err := h.store.GetByID(r.Context(), req.SignalID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if sig.IsExpired(h.now()) {
		respond.Error(w, h.logger, fault.ErrExpired)
		return
	}

	_, err = h.analyzer.Submit(r.Context(), sig, SubmitRequest{Answers: req.Answers, OptedOut: req.OptedOut})
	if err == ErrResponseExists {
		respond.JSON(w, http.StatusConflict, map[string]string{"error": "response already recorded"})
		return
	}
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// responseView is the rep-facing analysis payload.
type responseView struct {
	Summary           string    `json:"summary"`
	Recommendation    string    `json:"recommendation"`
	Reasoning         string    `json:"reasoning,omitempty"`
	SuggestedNextStep string    `json:"suggested_next_step,omitempty"`
	Answers           []QA      `json:"answers"`
	CompletedAt       time.Time `json:"completed_at"`
}

type signalView struct {
	ID                string        `json:"id"`
	SignalType        string        `json:"signal_type"`
	ProspectFirstName string        `json:"prospect_first_name"`
	ProspectCompany   string        `json:"prospect_company"`
	Slug              string        `json:"slug"`
	Link              string        `json:"link"`
	Status            string        `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	Response          *responseView `json:"response,omitempty"`
	ResponseLocked    bool          `json:"response_locked,omitempty"`
}

// List returns the rep's signals newest first. Free-plan accounts see
// the analysis for their earliest responses only; overflow responses
// come back locked so the dashboard can show an upgrade prompt instead.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	sigs, err := h.store.ListByUser(r.Context(), sess.UserID)
	if err != nil {
		respond.Error(w, h.logger, fault.Persistence("failed to list signals", err))
		return
	}
	responses, err := h.store.ListResponsesByUser(r.Context(), sess.UserID)
	if err != nil {
		respond.Error(w, h.logger, fault.Persistence("failed to list responses", err))
		return
	}

	limit := -1
	if h.quota != nil {
		limit, err = h.quota.VisibleLimit(r.Context(), sess.AccountID)
		if err != nil {
			// Quota is a gate on visibility, not correctness. Fail open.
			h.logger.Warn("quota lookup failed, showing all responses", "error", err)
			limit = -1
		}
	}

	visible := make(map[string]*responseView, len(responses))
	locked := make(map[string]bool)
	for i := range responses {
		resp := &responses[i]
		if limit >= 0 && i >= limit {
			locked[resp.SignalID] = true
			continue
		}
		visible[resp.SignalID] = &responseView{
			Summary:           resp.Summary,
			Recommendation:    resp.Recommendation,
			Reasoning:         resp.Reasoning,
			SuggestedNextStep: resp.SuggestedNextStep,
			Answers:           resp.Answers,
			CompletedAt:       resp.CompletedAt,
		}
	}

	now := h.now()
	views := make([]signalView, 0, len(sigs))
	for _, sig := range sigs {
		status := sig.Status
		if status != StatusCompleted && sig.IsExpired(now) {
			status = StatusExpired
		}
		views = append(views, signalView{
			ID:                sig.ID,
			SignalType:        sig.Type,
			ProspectFirstName: sig.ProspectFirstName,
			ProspectCompany:   sig.ProspectCompany,
			Slug:              sig.Slug,
			Link:              h.baseURL + "/s/" + sig.Slug,
			Status:            status,
			CreatedAt:         sig.CreatedAt,
			ExpiresAt:         sig.ExpiresAt,
			Response:          visible[sig.ID],
			ResponseLocked:    locked[sig.ID],
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"signals": views})
}
