package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/pkg/fault"
)

type fakeRecorder struct {
	openedAt    time.Time
	openedFound bool
	openedErr   error

	inserted  []*Response
	insertErr error
}

func (f *fakeRecorder) EarliestOpenedAt(context.Context, string) (time.Time, bool, error) {
	return f.openedAt, f.openedFound, f.openedErr
}

func (f *fakeRecorder) InsertResponse(_ context.Context, resp *Response) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *resp
	f.inserted = append(f.inserted, &copied)
	return nil
}

const analysisJSON = `{
	"summary": "Dana is still interested but the budget owner changed.",
	"recommendation": "revisit_later",
	"reasoning": "Interest is real, authority is not.",
	"suggested_next_step": "Ask for an intro to the new budget owner."
}`

func newTestAnalyzer(gw *fakeGateway, rec *fakeRecorder) *Analyzer {
	a := NewAnalyzer(gw, rec, nil, testLogger())
	a.now = func() time.Time { return time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC) }
	return a
}

func submittedAnswers() []QA {
	return []QA{
		{Question: "Where did things land?", Answer: "Still evaluating"},
		{Question: "What changed?", Answer: "New budget owner"},
	}
}

func TestSubmitHappyPath(t *testing.T) {
	opened := time.Date(2026, 8, 9, 15, 30, 0, 0, time.UTC)
	gw := &fakeGateway{responses: []string{analysisJSON}}
	rec := &fakeRecorder{openedAt: opened, openedFound: true}
	a := newTestAnalyzer(gw, rec)

	resp, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	require.NoError(t, err)

	assert.Equal(t, RecommendationRevisitLater, resp.Recommendation)
	assert.Equal(t, "Ask for an intro to the new budget owner.", resp.SuggestedNextStep)
	assert.Equal(t, opened, resp.OpenedAt)
	require.Len(t, rec.inserted, 1)
	assert.Equal(t, float32(0.35), gw.lastOpts.Temperature)
	assert.Contains(t, gw.lastUser, "New budget owner")
	assert.Contains(t, gw.lastUser, "Where it stalled: after_demo")
}

func TestSubmitOpenedAtFallsBackToNow(t *testing.T) {
	gw := &fakeGateway{responses: []string{analysisJSON}}
	rec := &fakeRecorder{openedFound: false}
	a := newTestAnalyzer(gw, rec)

	resp, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), resp.OpenedAt)
}

func TestSubmitOptOutSkipsModel(t *testing.T) {
	gw := &fakeGateway{}
	rec := &fakeRecorder{}
	a := newTestAnalyzer(gw, rec)

	resp, err := a.Submit(context.Background(), testSignal(), SubmitRequest{OptedOut: true})
	require.NoError(t, err)

	assert.Zero(t, gw.calls, "opt-out must not cost a model call")
	assert.Equal(t, RecommendationMoveOn, resp.Recommendation)
	assert.Equal(t, optOutSummary, resp.Summary)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, optOutQuestion, resp.Answers[0].Question)
	require.Len(t, rec.inserted, 1)
}

func TestSubmitRequiresAnswers(t *testing.T) {
	a := newTestAnalyzer(&fakeGateway{}, &fakeRecorder{})

	_, err := a.Submit(context.Background(), testSignal(), SubmitRequest{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestSubmitRejectsUnknownRecommendation(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		`{"summary": "ok", "recommendation": "buy_them_lunch", "reasoning": "", "suggested_next_step": ""}`,
	}}
	rec := &fakeRecorder{}
	a := newTestAnalyzer(gw, rec)

	_, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindDataQuality))
	assert.Empty(t, rec.inserted, "out-of-set recommendation must persist nothing")
}

func TestSubmitRejectsEmptySummary(t *testing.T) {
	gw := &fakeGateway{responses: []string{
		`{"summary": "  ", "recommendation": "move_on"}`,
	}}
	rec := &fakeRecorder{}
	a := newTestAnalyzer(gw, rec)

	_, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindDataQuality))
	assert.Empty(t, rec.inserted)
}

func TestSubmitUpstreamFailurePersistsNothing(t *testing.T) {
	gw := &fakeGateway{errs: []error{errors.New("provider down")}}
	rec := &fakeRecorder{}
	a := newTestAnalyzer(gw, rec)

	_, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindUpstream))
	assert.Empty(t, rec.inserted)
}

func TestSubmitDuplicateResponse(t *testing.T) {
	gw := &fakeGateway{responses: []string{analysisJSON}}
	rec := &fakeRecorder{insertErr: ErrResponseExists}
	a := newTestAnalyzer(gw, rec)

	_, err := a.Submit(context.Background(), testSignal(), SubmitRequest{Answers: submittedAnswers()})
	assert.ErrorIs(t, err, ErrResponseExists)
}

func TestValidRecommendation(t *testing.T) {
	for _, v := range []string{"re_engage", "pivot_approach", "move_on", "revisit_later"} {
		assert.True(t, ValidRecommendation(v), v)
	}
	for _, v := range []string{"", "Move_On", "reengage", "unknown"} {
		assert.False(t, ValidRecommendation(v), v)
	}
}
