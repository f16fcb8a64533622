package signals

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalhq/signal/internal/completion"
	"github.com/signalhq/signal/internal/observability/metrics"
	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/pkg/logging"
)

var engineTracer = otel.Tracer("signal.internal.signals.engine")

// MaxQuestions caps the adaptive conversation. The prospect is never
// asked more than this many tap-select questions before the open field.
const MaxQuestions = 6

// DefaultOpenFieldPrompt is shown when generation produced no bespoke
// open-field prompt for the signal.
const DefaultOpenFieldPrompt = "Anything else you'd like to add?"

// StepState tells the prospect-facing page what to render next.
type StepState string

const (
	// StateCollecting means another tap-select question follows.
	StateCollecting StepState = "collecting"
	// StateAwaitingOpenField means questions are done; show the free-text field.
	StateAwaitingOpenField StepState = "awaiting_open_field"
	// StateComplete means the whole questionnaire is finished.
	StateComplete StepState = "complete"
)

// StepResult is the engine's verdict after one answered question.
type StepResult struct {
	State           StepState `json:"state"`
	NextQuestion    *Question `json:"next_question,omitempty"`
	OpenFieldPrompt string    `json:"open_field_prompt,omitempty"`
}

// Engine drives the turn-by-turn questionnaire. Every decision after the
// first question comes from one completion call over the transcript so
// far; the engine itself holds no conversation state.
//
// The engine never hard-fails the prospect: any gateway fault, empty
// payload, or malformed decision falls open to the free-text field so
// the answers already collected are not lost.
type Engine struct {
	gateway completionGateway
	logger  *logging.Logger
	metrics *metrics.SignalMetrics
}

func NewEngine(gateway completionGateway, m *metrics.SignalMetrics, logger *logging.Logger) *Engine {
	if gateway == nil {
		panic("signals: completion gateway cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{gateway: gateway, logger: logger, metrics: m}
}

// stepDecision is the schema the model returns for one step. IsComplete
// is a pointer because older prompt revisions omitted it; absence means
// "complete only if there is no next question".
type stepDecision struct {
	IsComplete      *bool     `json:"is_complete"`
	NextQuestion    *Question `json:"next_question"`
	OpenFieldPrompt string    `json:"open_field_prompt"`
}

// NextStep decides what follows the latest answer in history. history
// holds every question asked so far paired with its answer, in order.
func (e *Engine) NextStep(ctx context.Context, sig *Signal, history []QA) (*StepResult, error) {
	ctx, span := engineTracer.Start(ctx, "signals.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("signal.id", sig.ID),
		attribute.Int("signal.questions_answered", len(history)),
	)

	if len(history) >= MaxQuestions {
		e.metrics.ObserveStep("max_questions")
		return e.openField(sig), nil
	}

	raw, err := e.gateway.CompleteJSON(ctx, prompts.StepSystemPrompt, buildStepUserPrompt(sig, history), completion.Options{
		Temperature: 0.7,
		Operation:   "step",
	})
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("step decision failed, concluding questionnaire",
			"signal_id", sig.ID,
			"questions_answered", len(history),
			"error", err,
		)
		e.metrics.ObserveStep("fail_open")
		return e.openField(sig), nil
	}

	var decision stepDecision
	if err := completion.DecodeInto(raw, &decision); err != nil {
		span.RecordError(err)
		e.logger.Warn("step decision unparsable, concluding questionnaire",
			"signal_id", sig.ID, "error", err)
		e.metrics.ObserveStep("fail_open")
		return e.openField(sig), nil
	}

	done := decision.NextQuestion == nil || strings.TrimSpace(decision.NextQuestion.QuestionText) == ""
	if decision.IsComplete != nil && *decision.IsComplete {
		done = true
	}
	if done {
		e.metrics.ObserveStep("concluded")
		result := e.openField(sig)
		// The model may supply a bespoke closing prompt for this conversation.
		if p := strings.TrimSpace(decision.OpenFieldPrompt); p != "" {
			result.OpenFieldPrompt = p
		}
		return result, nil
	}

	e.metrics.ObserveStep("next_question")
	return &StepResult{State: StateCollecting, NextQuestion: decision.NextQuestion}, nil
}

func (e *Engine) openField(sig *Signal) *StepResult {
	prompt := strings.TrimSpace(sig.Content.OpenFieldPrompt)
	if prompt == "" {
		prompt = DefaultOpenFieldPrompt
	}
	return &StepResult{State: StateAwaitingOpenField, OpenFieldPrompt: prompt}
}

func buildStepUserPrompt(sig *Signal, history []QA) string {
	var b strings.Builder
	b.WriteString("Deal context:\n")
	fmt.Fprintf(&b, "- Prospect: %s at %s\n", sig.ProspectFirstName, sig.ProspectCompany)
	fmt.Fprintf(&b, "- Deal summary: %s\n", sig.WhatWasPitched)
	fmt.Fprintf(&b, "- Stalled at: %s\n", sig.DealStage)
	if sig.RepHypothesis != "" {
		fmt.Fprintf(&b, "- Rep's hypothesis: %s\n", sig.RepHypothesis)
	}
	if sig.SpeakingDuration != "" {
		fmt.Fprintf(&b, "- Speaking duration: %s\n", prompts.SpeakingDurationLabel(sig.SpeakingDuration))
	}
	if sig.LastContactAgo != "" {
		fmt.Fprintf(&b, "- Last contact: %s\n", prompts.LastContactLabel(sig.LastContactAgo))
	}
	if labels := prompts.WantsToLearnLabels(sig.WantsToLearn); labels != "" {
		fmt.Fprintf(&b, "- What rep wants to learn: %s\n", labels)
	}
	fmt.Fprintf(&b, "\nProspect's answers so far (%d):\n", len(history))
	for _, qa := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", qa.Question, qa.Answer)
	}
	fmt.Fprintf(&b, "Generate the next question. Be personal and intelligent. Reference what they said. Max %d more questions.\n", MaxQuestions-len(history))
	return b.String()
}

// JoinMultiSelect flattens a multi-select answer into the single string
// form stored in the transcript. Selections keep their click order. Free
// text typed under an "Other" option replaces that selection in place; a
// bare "Other" with no text is kept as is.
func JoinMultiSelect(selected []string, otherText string) string {
	other := strings.TrimSpace(otherText)
	parts := make([]string, 0, len(selected)+1)
	substituted := false
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == "Other" && other != "" {
			parts = append(parts, "Other: "+other)
			substituted = true
			continue
		}
		parts = append(parts, s)
	}
	if other != "" && !substituted {
		parts = append(parts, "Other: "+other)
	}
	return strings.Join(parts, ", ")
}
