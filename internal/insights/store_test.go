package insights

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/internal/signals"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestStatusRollup(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`GROUP BY signal_type, status`).
		WithArgs("acct-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"signal_type", "status", "count"}).
			AddRow("deal_stalled", "created", 4).
			AddRow("deal_stalled", "completed", 1).
			AddRow("mid_deal", "sent", 2))

	rollup, err := store.StatusRollup(context.Background(), "acct-1", from, to)
	require.NoError(t, err)

	assert.Equal(t, []TypeStatusCount{
		{SignalType: "deal_stalled", Status: "created", Count: 4},
		{SignalType: "deal_stalled", Status: "completed", Count: 1},
		{SignalType: "mid_deal", Status: "sent", Count: 2},
	}, rollup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzedResponses(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM responses r`).
		WithArgs("acct-1", from, to, 200).
		WillReturnRows(pgxmock.NewRows([]string{"signal_type", "prospect_company", "summary", "recommendation", "answers"}).
			AddRow("deal_stalled", "Acme Robotics", "Budget froze.", "revisit_later",
				[]byte(`[{"question":"What happened?","answer":"Reorg"}]`)))

	digests, err := store.AnalyzedResponses(context.Background(), "acct-1", from, to, 200)
	require.NoError(t, err)

	require.Len(t, digests, 1)
	assert.Equal(t, "Acme Robotics", digests[0].ProspectCompany)
	assert.Equal(t, "revisit_later", digests[0].Recommendation)
	assert.Equal(t, []signals.QA{{Question: "What happened?", Answer: "Reorg"}}, digests[0].Answers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzedResponsesBadAnswers(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM responses r`).
		WithArgs("acct-1", from, to, 200).
		WillReturnRows(pgxmock.NewRows([]string{"signal_type", "prospect_company", "summary", "recommendation", "answers"}).
			AddRow("deal_stalled", "Acme Robotics", "s", "move_on", []byte(`not json`)))

	_, err := store.AnalyzedResponses(context.Background(), "acct-1", from, to, 200)
	assert.Error(t, err)
}
