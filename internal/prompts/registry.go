// Package prompts holds the per-signal-type instruction templates that
// drive the completion service, plus tenant-level overrides. Pure data
// and lookup; no dynamic code execution.
package prompts

import (
	"context"
	"fmt"
	"strings"
)

const (
	SignalTypeDealStalled = "deal_stalled"
	SignalTypeMidDeal     = "mid_deal"
	SignalTypeProspecting = "prospecting"
)

// Override keys recognized in tenant prompt rows.
const (
	keySystemOverride = "system_override"
	keyQuestionThemes = "question_themes"
)

// AccountContext is the tenant-authored context appended to generation
// payloads so the model can speak in the account's voice.
type AccountContext struct {
	Name               string
	ProductDescription string
	Differentiators    string
}

// OverrideStore supplies tenant-level prompt configuration. Implemented
// by the accounts store; nil disables overrides entirely.
type OverrideStore interface {
	PromptOverrides(ctx context.Context, accountID, signalType string) (map[string]string, error)
	AccountContext(ctx context.Context, accountID string) (AccountContext, error)
}

// Registry resolves the system prompt for a signal type with tenant
// override precedence: account system_override beats the built-in
// template, and a question_themes addendum is appended when present.
type Registry struct {
	overrides OverrideStore
}

func NewRegistry(overrides OverrideStore) *Registry {
	return &Registry{overrides: overrides}
}

// Resolve returns the system prompt for generating a signal of the given
// type on behalf of the given account. An unknown type falls back to the
// deal_stalled template, mirroring how signals are classified on intake.
func (r *Registry) Resolve(ctx context.Context, signalType, accountID string) (string, error) {
	prompt, ok := generationPrompts[signalType]
	if !ok {
		prompt = generationPrompts[SignalTypeDealStalled]
	}

	if r.overrides == nil || accountID == "" {
		return prompt, nil
	}

	rows, err := r.overrides.PromptOverrides(ctx, accountID, signalType)
	if err != nil {
		return "", fmt.Errorf("prompts: override lookup failed: %w", err)
	}
	if override := strings.TrimSpace(rows[keySystemOverride]); override != "" {
		prompt = override
	}
	if themes := strings.TrimSpace(rows[keyQuestionThemes]); themes != "" {
		prompt += "\n\nQuestion themes to consider: " + themes
	}
	return prompt, nil
}

// AccountContextBlock renders the tenant's product context for inclusion
// in a generation payload, or "" when nothing is configured.
func (r *Registry) AccountContextBlock(ctx context.Context, accountID string) (string, error) {
	if r.overrides == nil || accountID == "" {
		return "", nil
	}
	ac, err := r.overrides.AccountContext(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("prompts: account context lookup failed: %w", err)
	}
	var lines []string
	if ac.ProductDescription != "" {
		lines = append(lines, "Product: "+ac.ProductDescription)
	}
	if ac.Differentiators != "" {
		lines = append(lines, "Differentiators: "+ac.Differentiators)
	}
	return strings.Join(lines, "\n"), nil
}

// FullAccountContextBlock includes the account name as well; used by the
// landing-copy generator where the company introduces itself.
func (r *Registry) FullAccountContextBlock(ctx context.Context, accountID string) (string, error) {
	if r.overrides == nil || accountID == "" {
		return "", nil
	}
	ac, err := r.overrides.AccountContext(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("prompts: account context lookup failed: %w", err)
	}
	var lines []string
	if ac.Name != "" {
		lines = append(lines, "Company: "+ac.Name)
	}
	if ac.ProductDescription != "" {
		lines = append(lines, "Product: "+ac.ProductDescription)
	}
	if ac.Differentiators != "" {
		lines = append(lines, "Differentiators: "+ac.Differentiators)
	}
	return strings.Join(lines, "\n"), nil
}
