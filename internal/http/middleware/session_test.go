package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalhq/signal/internal/tenancy"
)

const sessionSecret = "test-session-secret"

func signSessionToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func repClaims() SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Email:            "rep@example.com",
		AccountID:        "acct-1",
		Role:             "admin",
	}
}

func doSession(t *testing.T, secret, token string) (*httptest.ResponseRecorder, tenancy.Session, bool) {
	t.Helper()
	var sess tenancy.Session
	var ok bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok = tenancy.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/signals", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	SessionJWT(secret)(handler).ServeHTTP(rec, req)
	return rec, sess, ok
}

func TestSessionJWTPopulatesSession(t *testing.T) {
	token := signSessionToken(t, sessionSecret, repClaims())

	rec, sess, ok := doSession(t, sessionSecret, token)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "acct-1", sess.AccountID)
	assert.Equal(t, "admin", sess.Role)
	assert.Equal(t, "rep@example.com", sess.Email)
}

func TestSessionJWTRejectsMissingHeader(t *testing.T) {
	rec, _, ok := doSession(t, sessionSecret, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestSessionJWTRejectsWrongSecret(t *testing.T) {
	token := signSessionToken(t, "some-other-secret", repClaims())
	rec, _, _ := doSession(t, sessionSecret, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionJWTRejectsExpiredToken(t *testing.T) {
	claims := repClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token := signSessionToken(t, sessionSecret, claims)

	rec, _, _ := doSession(t, sessionSecret, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionJWTRejectsMissingAccountClaim(t *testing.T) {
	claims := repClaims()
	claims.AccountID = ""
	token := signSessionToken(t, sessionSecret, claims)

	rec, _, _ := doSession(t, sessionSecret, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing identity claims")
}

func TestSessionJWTRejectsAllWhenUnconfigured(t *testing.T) {
	token := signSessionToken(t, sessionSecret, repClaims())
	rec, _, _ := doSession(t, "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}
