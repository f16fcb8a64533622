// Package insights aggregates an account's signals and responses into
// the dashboard report: the outreach funnel, per-type performance, the
// recommendation distribution, and a model-written qualitative summary.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/signalhq/signal/internal/signals"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store runs the read-only aggregation queries behind the report.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// TypeStatusCount is one (signal_type, status) bucket of the account's
// signals inside the report window.
type TypeStatusCount struct {
	SignalType string
	Status     string
	Count      int
}

// ResponseDigest is the slice of an analyzed response the report needs.
type ResponseDigest struct {
	SignalType      string
	ProspectCompany string
	Summary         string
	Recommendation  string
	Answers         []signals.QA
}

// StatusRollup buckets the account's signals created inside [from, to]
// by type and status.
func (s *Store) StatusRollup(ctx context.Context, accountID string, from, to time.Time) ([]TypeStatusCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT signal_type, status, COUNT(*)
		FROM signals
		WHERE account_id = $1 AND created_at >= $2 AND created_at <= $3
		GROUP BY signal_type, status`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeStatusCount
	for rows.Next() {
		var c TypeStatusCount
		if err := rows.Scan(&c.SignalType, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AnalyzedResponses returns the account's responses completed inside
// [from, to] that carry an analysis, newest first, capped at limit.
func (s *Store) AnalyzedResponses(ctx context.Context, accountID string, from, to time.Time, limit int) ([]ResponseDigest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.signal_type, s.prospect_company, r.summary, r.recommendation, r.answers
		FROM responses r
		JOIN signals s ON s.id = r.signal_id
		WHERE s.account_id = $1 AND r.completed_at >= $2 AND r.completed_at <= $3
		  AND (r.summary <> '' OR r.recommendation <> '')
		ORDER BY r.completed_at DESC
		LIMIT $4`, accountID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResponseDigest
	for rows.Next() {
		var d ResponseDigest
		var answers []byte
		if err := rows.Scan(&d.SignalType, &d.ProspectCompany, &d.Summary, &d.Recommendation, &answers); err != nil {
			return nil, err
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &d.Answers); err != nil {
				return nil, fmt.Errorf("insights: decode answers: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
