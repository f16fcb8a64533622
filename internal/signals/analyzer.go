package signals

import (
	"context"
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

var analyzerTracer = otel.Tracer("signal.internal.signals.analyzer")

// Canned record persisted when the prospect taps the opt-out path. No
// completion call is made for an opt-out.
const (
	optOutQuestion = "Opted out"
	optOutAnswer   = "Not interested right now"
	optOutSummary  = "Prospect opted out - not interested at this time."
)

// responseRecorder is the slice of the store the analyzer writes through.
type responseRecorder interface {
	EarliestOpenedAt(ctx context.Context, signalID string) (time.Time, bool, error)
	InsertResponse(ctx context.Context, resp *Response) error
}

// SubmitRequest is the prospect's final submission for a signal.
type SubmitRequest struct {
	Answers  []QA `json:"answers"`
	OptedOut bool `json:"opted_out"`
}

// Analyzer turns a completed questionnaire into the stored Response:
// one completion call to summarize and classify, then a transactional
// insert. Analysis failures persist nothing, so the prospect can retry.
type Analyzer struct {
	gateway completionGateway
	store   responseRecorder
	logger  *logging.Logger
	metrics *metrics.SignalMetrics
	now     func() time.Time
}

func NewAnalyzer(gateway completionGateway, store responseRecorder, m *metrics.SignalMetrics, logger *logging.Logger) *Analyzer {
	if gateway == nil {
		panic("signals: completion gateway cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{
		gateway: gateway,
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// analysis is the strict schema the model must return.
type analysis struct {
	Summary           string `json:"summary"`
	Recommendation    string `json:"recommendation"`
	Reasoning         string `json:"reasoning"`
	SuggestedNextStep string `json:"suggested_next_step"`
}

// Submit analyzes and records the prospect's answers. Returns
// ErrResponseExists when a response was already recorded for the
// signal, and a DataQuality fault when the model steps outside the
// closed recommendation set.
func (a *Analyzer) Submit(ctx context.Context, sig *Signal, req SubmitRequest) (*Response, error) {
	ctx, span := analyzerTracer.Start(ctx, "signals.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("signal.id", sig.ID),
		attribute.Bool("signal.opted_out", req.OptedOut),
	)

	if !req.OptedOut && len(req.Answers) == 0 {
		return nil, fault.Validation("answers are required", nil)
	}

	openedAt, found, err := a.store.EarliestOpenedAt(ctx, sig.ID)
	if err != nil {
		return nil, fault.Persistence("failed to load open event", err)
	}
	if !found {
		// Tracking can be blocked client-side; approximate with now.
		openedAt = a.now().UTC()
	}

	resp := &Response{
		ID:       uuid.NewString(),
		SignalID: sig.ID,
		OpenedAt: openedAt,
	}

	if req.OptedOut {
		resp.Answers = []QA{{Question: optOutQuestion, Answer: optOutAnswer}}
		resp.Summary = optOutSummary
		resp.Recommendation = RecommendationMoveOn
	} else {
		result, err := a.analyze(ctx, sig, req.Answers)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		resp.Answers = req.Answers
		resp.Summary = result.Summary
		resp.Recommendation = result.Recommendation
		resp.Reasoning = result.Reasoning
		resp.SuggestedNextStep = result.SuggestedNextStep
	}

	resp.CompletedAt = a.now().UTC()
	if err := a.store.InsertResponse(ctx, resp); err != nil {
		if err == ErrResponseExists {
			return nil, err
		}
		span.RecordError(err)
		return nil, fault.Persistence("response could not be saved", err)
	}

	a.metrics.ObserveResponse(resp.Recommendation)
	a.logger.Info("response recorded",
		"signal_id", sig.ID,
		"recommendation", resp.Recommendation,
		"opted_out", req.OptedOut,
	)
	return resp, nil
}

func (a *Analyzer) analyze(ctx context.Context, sig *Signal, answers []QA) (*analysis, error) {
	raw, err := a.gateway.CompleteJSON(ctx, prompts.AnalysisSystemPrompt, buildAnalysisUserPrompt(sig, answers), completion.Options{
		Temperature: 0.35,
		Operation:   "analyze",
	})
	if err != nil {
		return nil, fault.Upstream("response analysis failed", err)
	}

	var result analysis
	if err := completion.DecodeInto(raw, &result); err != nil {
		return nil, fault.Upstream("response analysis returned an unexpected payload", err)
	}
	if !ValidRecommendation(result.Recommendation) {
		return nil, fault.DataQuality(
			fmt.Sprintf("analysis produced unknown recommendation %q", result.Recommendation), nil)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, fault.DataQuality("analysis produced an empty summary", nil)
	}
	return &result, nil
}

func buildAnalysisUserPrompt(sig *Signal, answers []QA) string {
	var b strings.Builder
	b.WriteString("Deal context:\n")
	fmt.Fprintf(&b, "- Prospect: %s at %s\n", sig.ProspectFirstName, sig.ProspectCompany)
	fmt.Fprintf(&b, "- What was pitched: %s\n", sig.WhatWasPitched)
	fmt.Fprintf(&b, "- Where it stalled: %s\n", sig.DealStage)
	if sig.RepHypothesis != "" {
		fmt.Fprintf(&b, "- Rep's hypothesis: %s\n", sig.RepHypothesis)
	}
	b.WriteString("\nProspect's answers:\n")
	for _, qa := range answers {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
	}
	return b.String()
}
