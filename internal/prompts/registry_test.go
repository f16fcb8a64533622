package prompts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverrideStore struct {
	rows map[string]string
	ac   AccountContext
	err  error
}

func (f *fakeOverrideStore) PromptOverrides(_ context.Context, _, _ string) (map[string]string, error) {
	return f.rows, f.err
}

func (f *fakeOverrideStore) AccountContext(_ context.Context, _ string) (AccountContext, error) {
	return f.ac, f.err
}

func TestResolveBuiltinPerType(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	stalled, err := r.Resolve(ctx, SignalTypeDealStalled, "")
	require.NoError(t, err)
	assert.Contains(t, stalled, "went quiet")

	prospecting, err := r.Resolve(ctx, SignalTypeProspecting, "")
	require.NoError(t, err)
	assert.Contains(t, prospecting, "cold prospecting")
	assert.NotEqual(t, stalled, prospecting)
}

func TestResolveUnknownTypeFallsBack(t *testing.T) {
	r := NewRegistry(nil)
	got, err := r.Resolve(context.Background(), "bogus", "")
	require.NoError(t, err)
	assert.Equal(t, generationPrompts[SignalTypeDealStalled], got)
}

func TestResolveTenantOverridePrecedence(t *testing.T) {
	store := &fakeOverrideStore{rows: map[string]string{
		"system_override": "Custom tenant prompt.",
		"question_themes": "pricing, onboarding friction",
	}}
	r := NewRegistry(store)

	got, err := r.Resolve(context.Background(), SignalTypeDealStalled, "acct-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Custom tenant prompt."))
	assert.Contains(t, got, "Question themes to consider: pricing, onboarding friction")
}

func TestResolveBlankOverrideIgnored(t *testing.T) {
	store := &fakeOverrideStore{rows: map[string]string{"system_override": "   "}}
	r := NewRegistry(store)

	got, err := r.Resolve(context.Background(), SignalTypeMidDeal, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, generationPrompts[SignalTypeMidDeal], got)
}

func TestResolveStoreError(t *testing.T) {
	r := NewRegistry(&fakeOverrideStore{err: errors.New("db down")})
	_, err := r.Resolve(context.Background(), SignalTypeDealStalled, "acct-1")
	assert.Error(t, err)
}

func TestAccountContextBlock(t *testing.T) {
	store := &fakeOverrideStore{ac: AccountContext{
		Name:               "Acme",
		ProductDescription: "Engagement platform",
		Differentiators:    "Fastest onboarding",
	}}
	r := NewRegistry(store)

	block, err := r.AccountContextBlock(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Product: Engagement platform\nDifferentiators: Fastest onboarding", block)

	full, err := r.FullAccountContextBlock(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, "Company: Acme\n"))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "1–3 months", SpeakingDurationLabel("1_3_months"))
	assert.Equal(t, "custom_code", SpeakingDurationLabel("custom_code"))
	assert.Equal(t, "2–3 months", LastContactLabel("2_3_months"))
	assert.Equal(t,
		"Did they choose a competitor?, What's the reason for the delay?",
		WantsToLearnLabels([]string{"chose_competitor", "reason_for_delay"}),
	)
	assert.Empty(t, WantsToLearnLabels(nil))
}
