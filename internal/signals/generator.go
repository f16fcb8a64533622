package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalhq/signal/internal/completion"
	"github.com/signalhq/signal/internal/observability/metrics"
	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

var generatorTracer = otel.Tracer("signal.internal.signals.generator")

// Signals expire a fixed interval after creation, evaluated lazily.
const signalTTL = 30 * 24 * time.Hour

const slugRetries = 5

// completionGateway is the seam to the text-completion service.
type completionGateway interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts completion.Options) (json.RawMessage, error)
}

// signalCreator is the slice of the store the generator writes through.
type signalCreator interface {
	Create(ctx context.Context, sig *Signal) error
}

// GenerateRequest carries the rep-authored deal context for a new Signal.
type GenerateRequest struct {
	SignalType         string   `json:"signal_type"`
	ProspectFirstName  string   `json:"prospect_first_name"`
	ProspectCompany    string   `json:"prospect_company"`
	ProspectWebsiteURL string   `json:"prospect_website_url"`
	ProspectLogoURL    string   `json:"prospect_logo_url"`
	WhatWasPitched     string   `json:"what_was_pitched"`
	DealStage          string   `json:"deal_stage_when_stalled"`
	SpeakingDuration   string   `json:"speaking_duration"`
	LastContactAgo     string   `json:"last_contact_ago"`
	WantsToLearn       []string `json:"what_rep_wants_to_learn"`
	RepHypothesis      string   `json:"rep_hypothesis"`
	LandingIntro       string   `json:"landing_intro"`
	ValueProp          string   `json:"value_prop"`
}

// GenerateResult is returned to the rep after a successful generation.
type GenerateResult struct {
	Content  PageContent `json:"content"`
	SignalID string      `json:"signal_id"`
	Link     string      `json:"link"`
}

// Generator produces the first page of content for a new Signal and
// persists it with an unguessable slug.
type Generator struct {
	gateway  completionGateway
	registry *prompts.Registry
	store    signalCreator
	baseURL  string
	logger   *logging.Logger
	metrics  *metrics.SignalMetrics
	now      func() time.Time
}

func NewGenerator(gateway completionGateway, registry *prompts.Registry, store signalCreator, baseURL string, m *metrics.SignalMetrics, logger *logging.Logger) *Generator {
	if gateway == nil {
		panic("signals: completion gateway cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		gateway:  gateway,
		registry: registry,
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// generatedPage is the strict schema expected back from the model.
type generatedPage struct {
	LandingH1        string    `json:"landing_h1"`
	DealSummary      string    `json:"deal_summary"`
	ValuePropBullets []string  `json:"value_prop_bullets"`
	IntroParagraph   string    `json:"intro_paragraph"`
	FirstQuestion    *Question `json:"first_question"`
	OpenFieldPrompt  string    `json:"open_field_prompt"`
	SuggestedEmail   string    `json:"suggested_email"`
}

// Generate validates the deal context, runs one completion call, and
// persists the new Signal. Validation faults are terminal before any
// external call; upstream and persistence faults are kept distinct so
// the caller knows whether content was generated but not saved.
func (g *Generator) Generate(ctx context.Context, userID, accountID string, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := generatorTracer.Start(ctx, "signals.generate")
	defer span.End()

	req.SignalType = NormalizeType(req.SignalType)
	span.SetAttributes(
		attribute.String("signal.type", req.SignalType),
		attribute.String("signal.account_id", accountID),
	)

	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}

	systemPrompt, err := g.registry.Resolve(ctx, req.SignalType, accountID)
	if err != nil {
		return nil, fault.Internal("failed to resolve prompt template", err)
	}
	accountContext, err := g.registry.AccountContextBlock(ctx, accountID)
	if err != nil {
		return nil, fault.Internal("failed to load account context", err)
	}

	raw, err := g.gateway.CompleteJSON(ctx, systemPrompt, buildGenerateUserPrompt(req, accountContext), completion.Options{
		Temperature: 0.75,
		Operation:   "generate",
	})
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveGenerated(req.SignalType, "generation_failed")
		return nil, fault.Upstream("content generation failed", err)
	}

	var page generatedPage
	if err := completion.DecodeInto(raw, &page); err != nil {
		span.RecordError(err)
		g.metrics.ObserveGenerated(req.SignalType, "generation_failed")
		return nil, fault.Upstream("content generation returned an unexpected payload", err)
	}
	if page.FirstQuestion == nil || strings.TrimSpace(page.FirstQuestion.QuestionText) == "" {
		g.metrics.ObserveGenerated(req.SignalType, "generation_failed")
		return nil, fault.Upstream("content generation returned no first question", completion.ErrMalformedCompletion)
	}

	content := PageContent{
		LandingH1:        page.LandingH1,
		DealSummary:      page.DealSummary,
		ValuePropBullets: page.ValuePropBullets,
		IntroParagraph:   page.IntroParagraph,
		FirstQuestion:    page.FirstQuestion,
		Questions:        []Question{*page.FirstQuestion},
		OpenFieldPrompt:  page.OpenFieldPrompt,
		SuggestedEmail:   page.SuggestedEmail,
		Dynamic:          true,
	}

	now := g.now().UTC()
	sig := &Signal{
		ID:                 uuid.NewString(),
		UserID:             userID,
		AccountID:          accountID,
		Type:               req.SignalType,
		ProspectFirstName:  req.ProspectFirstName,
		ProspectCompany:    req.ProspectCompany,
		ProspectWebsiteURL: req.ProspectWebsiteURL,
		ProspectLogoURL:    req.ProspectLogoURL,
		WhatWasPitched:     firstNonEmpty(req.WhatWasPitched, req.LandingIntro, req.ValueProp),
		DealStage:          firstNonEmpty(req.DealStage, "went_dark"),
		SpeakingDuration:   req.SpeakingDuration,
		LastContactAgo:     req.LastContactAgo,
		WantsToLearn:       req.WantsToLearn,
		RepHypothesis:      req.RepHypothesis,
		LandingIntro:       req.LandingIntro,
		ValueProp:          req.ValueProp,
		Content:            content,
		Status:             StatusCreated,
		CreatedAt:          now,
		ExpiresAt:          now.Add(signalTTL),
	}

	if err := g.persistWithFreshSlug(ctx, sig); err != nil {
		span.RecordError(err)
		g.metrics.ObserveGenerated(req.SignalType, "persist_failed")
		return nil, fault.Persistence("generated content could not be saved", err)
	}

	g.metrics.ObserveGenerated(req.SignalType, "created")
	g.logger.Info("signal generated",
		"signal_id", sig.ID,
		"signal_type", sig.Type,
		"account_id", accountID,
	)

	return &GenerateResult{
		Content:  content,
		SignalID: sig.ID,
		Link:     g.baseURL + "/s/" + sig.Slug,
	}, nil
}

func (g *Generator) persistWithFreshSlug(ctx context.Context, sig *Signal) error {
	for attempt := 0; attempt < slugRetries; attempt++ {
		slug, err := NewSlug()
		if err != nil {
			return err
		}
		sig.Slug = slug
		err = g.store.Create(ctx, sig)
		if err == nil {
			return nil
		}
		if err != ErrSlugTaken {
			return err
		}
		g.logger.Warn("slug collision, regenerating", "attempt", attempt+1)
	}
	return fmt.Errorf("signals: exhausted %d slug attempts", slugRetries)
}

func validateGenerateRequest(req GenerateRequest) error {
	if strings.TrimSpace(req.ProspectFirstName) == "" ||
		strings.TrimSpace(req.ProspectCompany) == "" ||
		strings.TrimSpace(req.ProspectWebsiteURL) == "" {
		return fault.Validation("prospect first name, company, and website are required", nil)
	}
	if req.SignalType != prompts.SignalTypeProspecting && strings.TrimSpace(req.WhatWasPitched) == "" {
		return fault.Validation("deal context is required", nil)
	}
	return nil
}

func buildGenerateUserPrompt(req GenerateRequest, accountContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prospect first name: %s\n", req.ProspectFirstName)
	fmt.Fprintf(&b, "Prospect company: %s\n", req.ProspectCompany)
	fmt.Fprintf(&b, "Prospect website: %s\n", req.ProspectWebsiteURL)
	if req.ProspectLogoURL != "" {
		fmt.Fprintf(&b, "Prospect logo URL: %s\n", req.ProspectLogoURL)
	}
	if accountContext != "" {
		fmt.Fprintf(&b, "\nAccount context:\n%s\n", accountContext)
	}

	if req.SignalType == prompts.SignalTypeProspecting {
		fmt.Fprintf(&b, "\nLanding intro (company, value prop, customers): %s\n", req.LandingIntro)
		fmt.Fprintf(&b, "Value proposition: %s\n", req.ValueProp)
		fmt.Fprintf(&b, "Why reaching out: %s\n", req.WhatWasPitched)
		return b.String()
	}

	fmt.Fprintf(&b, "\nDeal context: %s\n", req.WhatWasPitched)
	fmt.Fprintf(&b, "Deal stage: %s\n", firstNonEmpty(req.DealStage, "went_dark"))
	if req.SpeakingDuration != "" {
		fmt.Fprintf(&b, "How long speaking: %s\n", prompts.SpeakingDurationLabel(req.SpeakingDuration))
	}
	if req.LastContactAgo != "" {
		fmt.Fprintf(&b, "Last contact: %s\n", prompts.LastContactLabel(req.LastContactAgo))
	}
	if labels := prompts.WantsToLearnLabels(req.WantsToLearn); labels != "" {
		fmt.Fprintf(&b, "What rep wants to understand: %s\n", labels)
	}
	if req.RepHypothesis != "" {
		fmt.Fprintf(&b, "Rep's hypothesis: %s\n", req.RepHypothesis)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
