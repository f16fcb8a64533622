// Package middleware holds the HTTP middleware chain: hosted-identity
// session validation, CORS, request logging, and per-IP rate limiting
// for the public prospect endpoints.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/signalhq/signal/internal/tenancy"
)

// SessionClaims are the claims the hosted identity provider signs into
// rep tokens. The subject is the user id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

// SessionJWT validates HMAC-signed hosted-identity tokens and places
// the rep session in the request context. An empty secret rejects
// everything; auth is never silently disabled.
func SessionJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"session auth not configured"}`, http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := &SessionClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" || claims.AccountID == "" {
				http.Error(w, `{"error":"token missing identity claims"}`, http.StatusUnauthorized)
				return
			}

			sess := tenancy.Session{
				UserID:    claims.Subject,
				AccountID: claims.AccountID,
				Role:      claims.Role,
				Email:     claims.Email,
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithSession(r.Context(), sess)))
		})
	}
}
