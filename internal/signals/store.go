package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/signalhq/signal/pkg/fault"
)

// ErrSlugTaken is returned when a freshly generated slug collides with an
// existing one; the generator retries with a new slug.
var ErrSlugTaken = errors.New("signals: slug already in use")

// ErrResponseExists guards the at-most-one-response invariant. A
// double-submit races here and loses to the unique constraint.
var ErrResponseExists = errors.New("signals: response already recorded")

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists Signals, Responses, and the append-only event log.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const signalColumns = `id, user_id, account_id, signal_type,
	prospect_first_name, prospect_company, prospect_website_url, prospect_logo_url,
	what_was_pitched, deal_stage, speaking_duration, last_contact_ago,
	wants_to_learn, rep_hypothesis, landing_intro, value_prop,
	content, slug, status, created_at, expires_at`

func (s *Store) Create(ctx context.Context, sig *Signal) error {
	content, err := json.Marshal(sig.Content)
	if err != nil {
		return fmt.Errorf("signals: encode content: %w", err)
	}
	// A nil slice would encode as NULL; wants_to_learn is NOT NULL.
	wantsToLearn := sig.WantsToLearn
	if wantsToLearn == nil {
		wantsToLearn = []string{}
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO signals (id, user_id, account_id, signal_type,
		    prospect_first_name, prospect_company, prospect_website_url, prospect_logo_url,
		    what_was_pitched, deal_stage, speaking_duration, last_contact_ago,
		    wants_to_learn, rep_hypothesis, landing_intro, value_prop,
		    content, slug, status, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		sig.ID, sig.UserID, sig.AccountID, sig.Type,
		sig.ProspectFirstName, sig.ProspectCompany, sig.ProspectWebsiteURL, sig.ProspectLogoURL,
		sig.WhatWasPitched, sig.DealStage, sig.SpeakingDuration, sig.LastContactAgo,
		wantsToLearn, sig.RepHypothesis, sig.LandingIntro, sig.ValueProp,
		content, sig.Slug, sig.Status, sig.CreatedAt, sig.ExpiresAt)
	if isUniqueViolation(err, "signals_slug_key") {
		return ErrSlugTaken
	}
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*Signal, error) {
	return s.getOne(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id)
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*Signal, error) {
	return s.getOne(ctx, `SELECT `+signalColumns+` FROM signals WHERE slug = $1`, slug)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (*Signal, error) {
	row := s.db.QueryRow(ctx, query, arg)
	sig, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sig, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*Signal, error) {
	var sig Signal
	var content []byte
	if err := row.Scan(&sig.ID, &sig.UserID, &sig.AccountID, &sig.Type,
		&sig.ProspectFirstName, &sig.ProspectCompany, &sig.ProspectWebsiteURL, &sig.ProspectLogoURL,
		&sig.WhatWasPitched, &sig.DealStage, &sig.SpeakingDuration, &sig.LastContactAgo,
		&sig.WantsToLearn, &sig.RepHypothesis, &sig.LandingIntro, &sig.ValueProp,
		&content, &sig.Slug, &sig.Status, &sig.CreatedAt, &sig.ExpiresAt); err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &sig.Content); err != nil {
			return nil, fmt.Errorf("signals: decode content: %w", err)
		}
	}
	return &sig, nil
}

// ListByUser returns the rep's signals, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Signal, error) {
	rows, err := s.db.Query(ctx, `SELECT `+signalColumns+` FROM signals WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Signal{}
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

// UpdateStatusOwned flips status for a signal the given rep owns.
func (s *Store) UpdateStatusOwned(ctx context.Context, id, userID, status string) error {
	tag, err := s.db.Exec(ctx, `UPDATE signals SET status = $1 WHERE id = $2 AND user_id = $3`, status, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// TrackOpen records the first page_opened event for a signal and moves a
// created/sent signal to opened. Idempotent: the partial unique index on
// (signal_id) WHERE event_type = 'page_opened' makes the insert a no-op
// on repeat calls. Returns whether this call recorded the event.
func (s *Store) TrackOpen(ctx context.Context, signalID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO signal_events (signal_id, event_type, occurred_at)
		VALUES ($1, 'page_opened', $2)
		ON CONFLICT DO NOTHING`, signalID, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	_, err = s.db.Exec(ctx, `
		UPDATE signals SET status = 'opened'
		WHERE id = $1 AND status IN ('created', 'sent')`, signalID)
	return true, err
}

// EarliestOpenedAt reconstructs opened_at for a response insert. The
// second return is false when tracking never fired before submission.
func (s *Store) EarliestOpenedAt(ctx context.Context, signalID string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRow(ctx, `
		SELECT occurred_at FROM signal_events
		WHERE signal_id = $1 AND event_type = 'page_opened'
		ORDER BY occurred_at ASC LIMIT 1`, signalID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// InsertResponse persists the response, logs page_completed, and flips
// the signal to completed in one transaction, so a response is never
// visible in a half-updated state.
func (s *Store) InsertResponse(ctx context.Context, resp *Response) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("signals: encode answers: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO responses (id, signal_id, answers, summary, recommendation,
		    reasoning, suggested_next_step, opened_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		resp.ID, resp.SignalID, answers, resp.Summary, resp.Recommendation,
		resp.Reasoning, resp.SuggestedNextStep, resp.OpenedAt, resp.CompletedAt)
	if isUniqueViolation(err, "responses_signal_id_key") {
		return ErrResponseExists
	}
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO signal_events (signal_id, event_type, occurred_at)
		VALUES ($1, 'page_completed', $2)`, resp.SignalID, resp.CompletedAt); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `UPDATE signals SET status = 'completed' WHERE id = $1`, resp.SignalID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetResponse returns the response for a signal, or fault.ErrNotFound.
func (s *Store) GetResponse(ctx context.Context, signalID string) (*Response, error) {
	var resp Response
	var answers []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, signal_id, answers, summary, recommendation,
		       reasoning, suggested_next_step, opened_at, completed_at
		FROM responses WHERE signal_id = $1`, signalID).Scan(
		&resp.ID, &resp.SignalID, &answers, &resp.Summary, &resp.Recommendation,
		&resp.Reasoning, &resp.SuggestedNextStep, &resp.OpenedAt, &resp.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &resp.Answers); err != nil {
			return nil, fmt.Errorf("signals: decode answers: %w", err)
		}
	}
	return &resp, nil
}

// ListResponsesByUser returns every response to the rep's signals, oldest
// completion first. Ascending order matters: the quota gate unlocks the
// earliest responses and locks the overflow.
func (s *Store) ListResponsesByUser(ctx context.Context, userID string) ([]Response, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.signal_id, r.answers, r.summary, r.recommendation,
		       r.reasoning, r.suggested_next_step, r.opened_at, r.completed_at
		FROM responses r
		JOIN signals s ON s.id = r.signal_id
		WHERE s.user_id = $1
		ORDER BY r.completed_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var resp Response
		var answers []byte
		if err := rows.Scan(&resp.ID, &resp.SignalID, &answers, &resp.Summary, &resp.Recommendation,
			&resp.Reasoning, &resp.SuggestedNextStep, &resp.OpenedAt, &resp.CompletedAt); err != nil {
			return nil, err
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &resp.Answers); err != nil {
				return nil, fmt.Errorf("signals: decode answers: %w", err)
			}
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// CountCompletedResponses counts responses completed for an account since
// the given instant. Backs the plan quota gate; read-only and tolerant of
// slight staleness.
func (s *Store) CountCompletedResponses(ctx context.Context, accountID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM responses r
		JOIN signals s ON s.id = r.signal_id
		WHERE s.account_id = $1 AND r.completed_at >= $2`, accountID, since).Scan(&n)
	return n, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return constraint == "" || pgErr.ConstraintName == constraint
	}
	return false
}
