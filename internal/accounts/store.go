package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/signalhq/signal/internal/prompts"
	"github.com/signalhq/signal/pkg/fault"
)

// Store reads and writes tenant data. It also implements
// prompts.OverrideStore so the registry can pull tenant prompt rows
// without knowing about this package.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("accounts: sql db required")
	}
	return &Store{db: db}
}

func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, product_description, differentiators, plan,
		       COALESCE(stripe_customer_id, ''), created_at
		FROM accounts WHERE id = $1`, id).Scan(
		&a.ID, &a.Name, &a.ProductDescription, &a.Differentiators, &a.Plan,
		&a.StripeCustomerID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: select account: %w", err)
	}
	return &a, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, email, name, role, created_at
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.AccountID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: select user: %w", err)
	}
	return &u, nil
}

// ListUsers returns the account's reps, oldest first.
func (s *Store) ListUsers(ctx context.Context, accountID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, email, name, role, created_at
		FROM users WHERE account_id = $1 ORDER BY created_at ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("accounts: list users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.AccountID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile stores the tenant-authored company context that feeds
// prompt generation.
func (s *Store) UpdateProfile(ctx context.Context, accountID, name, productDescription, differentiators string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET name = $2, product_description = $3, differentiators = $4
		WHERE id = $1`, accountID, name, productDescription, differentiators)
	if err != nil {
		return fmt.Errorf("accounts: update profile: %w", err)
	}
	return checkAffected(res)
}

// Plan returns the account's billing plan for the quota gate.
func (s *Store) Plan(ctx context.Context, accountID string) (string, error) {
	var plan string
	err := s.db.QueryRowContext(ctx, `SELECT plan FROM accounts WHERE id = $1`, accountID).Scan(&plan)
	if err == sql.ErrNoRows {
		return "", fault.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("accounts: select plan: %w", err)
	}
	return plan, nil
}

// SetPlan flips the billing plan; called from the billing webhook.
func (s *Store) SetPlan(ctx context.Context, accountID, plan string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET plan = $2 WHERE id = $1`, accountID, plan)
	if err != nil {
		return fmt.Errorf("accounts: set plan: %w", err)
	}
	return checkAffected(res)
}

// SetStripeCustomer links the account to its Stripe customer so later
// subscription events can be resolved back to a tenant.
func (s *Store) SetStripeCustomer(ctx context.Context, accountID, customerID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET stripe_customer_id = $2 WHERE id = $1`, accountID, customerID)
	if err != nil {
		return fmt.Errorf("accounts: set stripe customer: %w", err)
	}
	return checkAffected(res)
}

// SetPlanByStripeCustomer downgrades/upgrades by customer reference,
// used when a webhook event carries no account metadata.
func (s *Store) SetPlanByStripeCustomer(ctx context.Context, customerID, plan string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET plan = $2 WHERE stripe_customer_id = $1`, customerID, plan)
	if err != nil {
		return fmt.Errorf("accounts: set plan by customer: %w", err)
	}
	return checkAffected(res)
}

// PromptOverrides returns the tenant's prompt rows for one signal type
// as a key/value map. Implements prompts.OverrideStore.
func (s *Store) PromptOverrides(ctx context.Context, accountID, signalType string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM account_prompts
		WHERE account_id = $1 AND signal_type = $2`, accountID, signalType)
	if err != nil {
		return nil, fmt.Errorf("accounts: select prompt overrides: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// AllPromptOverrides returns every tenant prompt row for the account,
// grouped by signal type. Backs the settings surface.
func (s *Store) AllPromptOverrides(ctx context.Context, accountID string) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_type, key, value FROM account_prompts
		WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("accounts: select all prompt overrides: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]string{}
	for rows.Next() {
		var signalType, k, v string
		if err := rows.Scan(&signalType, &k, &v); err != nil {
			return nil, err
		}
		if out[signalType] == nil {
			out[signalType] = map[string]string{}
		}
		out[signalType][k] = v
	}
	return out, rows.Err()
}

// UpsertPromptOverride writes one tenant prompt row.
func (s *Store) UpsertPromptOverride(ctx context.Context, accountID, signalType, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_prompts (account_id, signal_type, key, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, signal_type, key) DO UPDATE SET value = EXCLUDED.value`,
		accountID, signalType, key, value)
	if err != nil {
		return fmt.Errorf("accounts: upsert prompt override: %w", err)
	}
	return nil
}

// AccountContext returns the company profile block the registry feeds
// into generation prompts. Implements prompts.OverrideStore. A missing
// account yields an empty context rather than an error: generation
// proceeds without tenant voice.
func (s *Store) AccountContext(ctx context.Context, accountID string) (prompts.AccountContext, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err == fault.ErrNotFound {
		return prompts.AccountContext{}, nil
	}
	if err != nil {
		return prompts.AccountContext{}, err
	}
	return prompts.AccountContext{
		Name:               a.Name,
		ProductDescription: a.ProductDescription,
		Differentiators:    a.Differentiators,
	}, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

var _ prompts.OverrideStore = (*Store)(nil)
