package tenancy

import "context"

type ctxKey string

const sessionKey ctxKey = "signal.session"

// Session identifies the authenticated rep for the current request.
// Populated by the session middleware from the hosted identity token.
type Session struct {
	UserID    string
	AccountID string
	Role      string
	Email     string
}

// WithSession stores the session in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the session if present.
func SessionFromContext(ctx context.Context) (Session, bool) {
	val := ctx.Value(sessionKey)
	if val == nil {
		return Session{}, false
	}
	s, ok := val.(Session)
	return s, ok && s.UserID != ""
}

// IsAdmin reports whether the session carries the account admin role.
func (s Session) IsAdmin() bool {
	return s.Role == "admin"
}
