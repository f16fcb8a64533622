package signals

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/internal/completion"
	"github.com/signalhq/signal/pkg/logging"
)

// fakeGateway scripts CompleteJSON outcomes in order and records the
// prompts it was called with.
type fakeGateway struct {
	responses []string
	errs      []error
	calls     int

	lastSystem string
	lastUser   string
	lastOpts   completion.Options
}

func (f *fakeGateway) CompleteJSON(_ context.Context, systemPrompt, userPrompt string, opts completion.Options) (json.RawMessage, error) {
	i := f.calls
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	f.lastOpts = opts

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return json.RawMessage(f.responses[i]), nil
	}
	return nil, completion.ErrEmptyCompletion
}

func testLogger() *logging.Logger {
	return logging.New("error", "test")
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func testSignal() *Signal {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &Signal{
		ID:                "sig-1",
		UserID:            "user-1",
		AccountID:         "acct-1",
		Type:              "deal_stalled",
		ProspectFirstName: "Dana",
		ProspectCompany:   "Acme Robotics",
		WhatWasPitched:    "Annual analytics platform license",
		DealStage:         "after_demo",
		RepHypothesis:     "Budget froze after the reorg",
		Content: PageContent{
			IntroParagraph:  "Hi Dana, quick one about our conversation.",
			FirstQuestion:   &Question{QuestionText: "Where did things land?", Options: []string{"Still evaluating", "Went another way"}},
			Questions:       []Question{{QuestionText: "Where did things land?", Options: []string{"Still evaluating", "Went another way"}}},
			OpenFieldPrompt: "Anything we missed?",
			SuggestedEmail:  "Hi Dana, made you a page: [SIGNAL_LINK]",
			Dynamic:         true,
		},
		Slug:      "aB3dE7gH9k",
		Status:    StatusSent,
		CreatedAt: now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}
