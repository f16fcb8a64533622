package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalhq/signal/internal/completion"
	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/internal/signals"
	"github.com/signalhq/signal/pkg/logging"
)

var tracer = otel.Tracer("signal.internal.insights")

const (
	// digestLimit caps how many analyzed responses feed one report.
	digestLimit = 200
	// answersBudget caps the raw-answer excerpt in the summary prompt.
	answersBudget = 3000

	fallbackSummary = "Unable to generate insights."
)

type completionGateway interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts completion.Options) (json.RawMessage, error)
}

type reportStore interface {
	StatusRollup(ctx context.Context, accountID string, from, to time.Time) ([]TypeStatusCount, error)
	AnalyzedResponses(ctx context.Context, accountID string, from, to time.Time, limit int) ([]ResponseDigest, error)
}

// Funnel is the account's outreach funnel. Each stage subsumes the ones
// after it, so created >= sent >= opened >= completed always holds.
type Funnel struct {
	Created   int `json:"created"`
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Completed int `json:"completed"`
}

// TypeCounts is one signal type's slice of the funnel.
type TypeCounts struct {
	Created   int `json:"created"`
	Completed int `json:"completed"`
}

// RecommendationCount is one bucket of the recommendation distribution,
// with underscores spaced out for display.
type RecommendationCount struct {
	Recommendation string `json:"recommendation"`
	Count          int    `json:"count"`
}

// Report is the full insights payload for one account and window.
type Report struct {
	Summary                    string                `json:"insights"`
	ResponseCount              int                   `json:"response_count"`
	SignalCount                int                   `json:"signal_count"`
	RecommendationDistribution []RecommendationCount `json:"recommendation_distribution"`
	Funnel                     Funnel                `json:"funnel"`
	PerformanceByType          map[string]TypeCounts `json:"performance_by_type"`
}

// Service assembles reports. The qualitative summary is best-effort:
// a completion failure degrades to a canned line, never an error.
type Service struct {
	store   reportStore
	gateway completionGateway
	logger  *logging.Logger
}

func NewService(store reportStore, gateway completionGateway, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, gateway: gateway, logger: logger}
}

// Report aggregates the account's activity inside [from, to].
func (s *Service) Report(ctx context.Context, accountID string, from, to time.Time) (*Report, error) {
	ctx, span := tracer.Start(ctx, "insights.report")
	defer span.End()
	span.SetAttributes(attribute.String("signal.account_id", accountID))

	rollup, err := s.store.StatusRollup(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("insights: status rollup: %w", err)
	}
	digests, err := s.store.AnalyzedResponses(ctx, accountID, from, to, digestLimit)
	if err != nil {
		return nil, fmt.Errorf("insights: responses: %w", err)
	}

	report := &Report{
		ResponseCount:              len(digests),
		RecommendationDistribution: distribution(digests),
		Funnel:                     buildFunnel(rollup),
		PerformanceByType:          performanceByType(rollup),
	}
	for _, c := range rollup {
		if c.Status == signals.StatusOpened || c.Status == signals.StatusCompleted {
			report.SignalCount += c.Count
		}
	}
	report.Summary = s.summarize(ctx, digests)
	return report, nil
}

func buildFunnel(rollup []TypeStatusCount) Funnel {
	var f Funnel
	for _, c := range rollup {
		f.Created += c.Count
		switch c.Status {
		case signals.StatusSent:
			f.Sent += c.Count
		case signals.StatusOpened:
			f.Sent += c.Count
			f.Opened += c.Count
		case signals.StatusCompleted:
			f.Sent += c.Count
			f.Opened += c.Count
			f.Completed += c.Count
		}
	}
	return f
}

func performanceByType(rollup []TypeStatusCount) map[string]TypeCounts {
	byType := map[string]TypeCounts{}
	for _, c := range rollup {
		t := c.SignalType
		if t == "" {
			t = prompts.SignalTypeDealStalled
		}
		counts := byType[t]
		counts.Created += c.Count
		if c.Status == signals.StatusCompleted {
			counts.Completed += c.Count
		}
		byType[t] = counts
	}
	return byType
}

func distribution(digests []ResponseDigest) []RecommendationCount {
	counts := map[string]int{}
	var order []string
	for _, d := range digests {
		rec := d.Recommendation
		if rec == "" {
			rec = "unknown"
		}
		if _, seen := counts[rec]; !seen {
			order = append(order, rec)
		}
		counts[rec]++
	}

	out := []RecommendationCount{}
	for _, rec := range order {
		out = append(out, RecommendationCount{
			Recommendation: strings.ReplaceAll(rec, "_", " "),
			Count:          counts[rec],
		})
	}
	return out
}

// summarize asks the completion service for the qualitative report. No
// summaries or a failed call both degrade gracefully.
func (s *Service) summarize(ctx context.Context, digests []ResponseDigest) string {
	var summaries []string
	for _, d := range digests {
		if d.Summary != "" {
			summaries = append(summaries, d.Summary)
		}
	}
	if len(summaries) == 0 {
		return ""
	}

	raw, err := s.gateway.CompleteJSON(ctx, prompts.InsightsSystemPrompt, buildSummaryUserPrompt(digests, summaries), completion.Options{
		Temperature: 0.4,
		Operation:   "insights",
	})
	if err != nil {
		s.logger.Warn("insights summary generation failed", "error", err)
		return fallbackSummary
	}

	var parsed struct {
		Insights string `json:"insights"`
	}
	if err := completion.DecodeInto(raw, &parsed); err != nil {
		s.logger.Warn("insights summary malformed", "error", err)
		return fallbackSummary
	}
	return strings.TrimSpace(parsed.Insights)
}

func buildSummaryUserPrompt(digests []ResponseDigest, summaries []string) string {
	var answers strings.Builder
	for _, d := range digests {
		for _, qa := range d.Answers {
			answers.WriteString(qa.Question)
			answers.WriteString(": ")
			answers.WriteString(qa.Answer)
			answers.WriteString("\n")
		}
		answers.WriteString("\n")
	}
	excerpt := answers.String()
	if len(excerpt) > answersBudget {
		excerpt = excerpt[:answersBudget]
	}

	return fmt.Sprintf("Aggregated AI summaries (%d responses):\n\n%s\n\nSample answers:\n%s",
		len(digests), strings.Join(summaries, "\n\n"), excerpt)
}
