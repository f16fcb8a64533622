package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalhq/signal/internal/observability/metrics"
	"github.com/signalhq/signal/pkg/logging"
)

var gatewayTracer = otel.Tracer("signal.internal.completion")

var (
	// ErrEmptyCompletion means the provider answered but with no content.
	ErrEmptyCompletion = errors.New("completion: empty completion content")
	// ErrMalformedCompletion means the content was not the JSON the caller asked for.
	ErrMalformedCompletion = errors.New("completion: malformed completion content")
)

// Options tunes a single gateway call.
type Options struct {
	Temperature float32
	MaxTokens   int32
	// Operation labels metrics and traces, e.g. "generate", "next_question".
	Operation string
}

// Gateway is the single seam through which every AI-driven operation talks
// to the text-completion service. It builds the request, enforces JSON
// response mode, and classifies failures so callers can decide whether to
// fail open (prospect-facing) or surface the error (rep-facing).
type Gateway struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.CompletionMetrics
}

// NewGateway returns a gateway over the given client.
func NewGateway(client LLMClient, model string, timeout time.Duration, m *metrics.CompletionMetrics, logger *logging.Logger) *Gateway {
	if client == nil {
		panic("completion: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// CompleteJSON runs one system+user exchange and returns the raw JSON object
// the model produced. Transport failures are retried once with jittered
// backoff; empty or malformed content is returned as a typed error without
// retrying, since the same input would fail the same way again.
func (g *Gateway) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts Options) (json.RawMessage, error) {
	ctx, span := gatewayTracer.Start(ctx, "completion.complete_json")
	defer span.End()
	span.SetAttributes(
		attribute.String("signal.completion.operation", opts.Operation),
		attribute.String("signal.completion.model", g.model),
	)

	req := LLMRequest{
		Model:       g.model,
		System:      []string{systemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: userPrompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		JSONMode:    true,
	}

	start := time.Now()
	resp, err := g.completeWithRetry(ctx, req)
	g.metrics.ObserveLatency(opts.Operation, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveCall(opts.Operation, "transport_error")
		return nil, fmt.Errorf("completion: %s call failed: %w", opts.Operation, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		span.RecordError(ErrEmptyCompletion)
		g.metrics.ObserveCall(opts.Operation, "empty")
		return nil, ErrEmptyCompletion
	}

	raw := extractJSONObject(text)
	if raw == "" || !json.Valid([]byte(raw)) {
		span.RecordError(ErrMalformedCompletion)
		g.metrics.ObserveCall(opts.Operation, "malformed")
		g.logger.Warn("completion returned non-JSON content",
			"operation", opts.Operation,
			"content_prefix", prefix(text, 120),
		)
		return nil, ErrMalformedCompletion
	}

	g.metrics.ObserveCall(opts.Operation, "ok")
	return json.RawMessage(raw), nil
}

func (g *Gateway) completeWithRetry(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := g.complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return LLMResponse{}, err
	}

	// One bounded retry for transport-level failures only.
	backoff := 500*time.Millisecond + time.Duration(rand.Int63n(int64(time.Second)))
	g.logger.Warn("completion call failed, retrying once",
		"error", err.Error(),
		"backoff_ms", backoff.Milliseconds(),
	)
	select {
	case <-ctx.Done():
		return LLMResponse{}, err
	case <-time.After(backoff):
	}
	return g.complete(ctx, req)
}

func (g *Gateway) complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.Complete(callCtx, req)
}

// DecodeInto parses a gateway result into a strict schema. A payload that
// does not unmarshal is reported as malformed, not trusted field-by-field.
func DecodeInto(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	return nil
}

// extractJSONObject pulls the outermost JSON object out of model text,
// tolerating markdown code fences some providers wrap around JSON.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
