package accounts

import "time"

// Billing plans. Premium removes the response-visibility cap.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Account is a tenant: one selling company with its own users, prompt
// overrides, and billing state.
type Account struct {
	ID                 string
	Name               string
	ProductDescription string
	Differentiators    string
	Plan               string
	StripeCustomerID   string
	CreatedAt          time.Time
}

// User is a rep belonging to an account. Identity lives with the hosted
// provider; this row carries the app-side profile.
type User struct {
	ID        string
	AccountID string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}
