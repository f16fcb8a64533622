package signals

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/pkg/fault"
)

var signalRowColumns = []string{
	"id", "user_id", "account_id", "signal_type",
	"prospect_first_name", "prospect_company", "prospect_website_url", "prospect_logo_url",
	"what_was_pitched", "deal_stage", "speaking_duration", "last_contact_ago",
	"wants_to_learn", "rep_hypothesis", "landing_intro", "value_prop",
	"content", "slug", "status", "created_at", "expires_at",
}

func signalRow(sig *Signal, content []byte) *pgxmock.Rows {
	return pgxmock.NewRows(signalRowColumns).AddRow(
		sig.ID, sig.UserID, sig.AccountID, sig.Type,
		sig.ProspectFirstName, sig.ProspectCompany, sig.ProspectWebsiteURL, sig.ProspectLogoURL,
		sig.WhatWasPitched, sig.DealStage, sig.SpeakingDuration, sig.LastContactAgo,
		sig.WantsToLearn, sig.RepHypothesis, sig.LandingIntro, sig.ValueProp,
		content, sig.Slug, sig.Status, sig.CreatedAt, sig.ExpiresAt,
	)
}

func TestStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO signals").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), testSignal()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateNilWantsToLearn(t *testing.T) {
	store, mock := newMockStore(t)
	sig := testSignal()
	sig.WantsToLearn = nil

	// The empty-slice arg matters: a nil slice would hit the NOT NULL
	// text[] column as NULL.
	mock.ExpectExec("INSERT INTO signals").
		WithArgs(sig.ID, sig.UserID, sig.AccountID, sig.Type,
			sig.ProspectFirstName, sig.ProspectCompany, sig.ProspectWebsiteURL, sig.ProspectLogoURL,
			sig.WhatWasPitched, sig.DealStage, sig.SpeakingDuration, sig.LastContactAgo,
			[]string{}, sig.RepHypothesis, sig.LandingIntro, sig.ValueProp,
			pgxmock.AnyArg(), sig.Slug, sig.Status, sig.CreatedAt, sig.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), sig))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateSlugCollision(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO signals").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "signals_slug_key"})

	err := store.Create(context.Background(), testSignal())
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestStoreGetBySlug(t *testing.T) {
	store, mock := newMockStore(t)
	sig := testSignal()
	sig.WantsToLearn = []string{"pricing_concerns", "decision_timeline"}

	mock.ExpectQuery("FROM signals WHERE slug").
		WithArgs(sig.Slug).
		WillReturnRows(signalRow(sig, []byte(`{"intro_paragraph":"hi","questions":[],"open_field_prompt":"","suggested_email":"","dynamic":true}`)))

	got, err := store.GetBySlug(context.Background(), sig.Slug)
	require.NoError(t, err)
	assert.Equal(t, sig.ID, got.ID)
	assert.Equal(t, []string{"pricing_concerns", "decision_timeline"}, got.WantsToLearn)
	assert.Equal(t, "hi", got.Content.IntroParagraph)
	assert.True(t, got.Content.Dynamic)
}

func TestStoreGetBySlugNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM signals WHERE slug").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestStoreUpdateStatusOwned(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE signals SET status").
		WithArgs(StatusSent, "sig-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateStatusOwned(context.Background(), "sig-1", "user-1", StatusSent))
}

func TestStoreUpdateStatusOwnedWrongOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE signals SET status").
		WithArgs(StatusSent, "sig-1", "intruder").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateStatusOwned(context.Background(), "sig-1", "intruder", StatusSent)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestStoreTrackOpenFirstTime(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO signal_events").
		WithArgs("sig-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE signals SET status = 'opened'").
		WithArgs("sig-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	recorded, err := store.TrackOpen(context.Background(), "sig-1", at)
	require.NoError(t, err)
	assert.True(t, recorded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTrackOpenRepeatIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO signal_events").
		WithArgs("sig-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	recorded, err := store.TrackOpen(context.Background(), "sig-1", at)
	require.NoError(t, err)
	assert.False(t, recorded, "repeat open must not update status again")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreEarliestOpenedAt(t *testing.T) {
	store, mock := newMockStore(t)
	opened := time.Date(2026, 8, 9, 15, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT occurred_at FROM signal_events").
		WithArgs("sig-1").
		WillReturnRows(pgxmock.NewRows([]string{"occurred_at"}).AddRow(opened))

	at, found, err := store.EarliestOpenedAt(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, opened, at)
}

func TestStoreEarliestOpenedAtMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT occurred_at FROM signal_events").
		WithArgs("sig-1").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := store.EarliestOpenedAt(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func testResponse() *Response {
	return &Response{
		ID:             "resp-1",
		SignalID:       "sig-1",
		Answers:        []QA{{Question: "q", Answer: "a"}},
		Summary:        "still interested",
		Recommendation: RecommendationReEngage,
		OpenedAt:       time.Date(2026, 8, 9, 15, 30, 0, 0, time.UTC),
		CompletedAt:    time.Date(2026, 8, 9, 15, 35, 0, 0, time.UTC),
	}
}

func TestStoreInsertResponseTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO responses").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO signal_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE signals SET status = 'completed'").
		WithArgs("sig-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.InsertResponse(context.Background(), testResponse()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInsertResponseDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO responses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "responses_signal_id_key"})
	mock.ExpectRollback()

	err := store.InsertResponse(context.Background(), testResponse())
	assert.ErrorIs(t, err, ErrResponseExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountCompletedResponses(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM responses`).
		WithArgs("acct-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountCompletedResponses(context.Background(), "acct-1", since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
