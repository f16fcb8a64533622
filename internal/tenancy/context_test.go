package tenancy

import (
	"context"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()

	if _, ok := SessionFromContext(ctx); ok {
		t.Fatal("expected no session on empty context")
	}

	s := Session{UserID: "u1", AccountID: "a1", Role: "admin", Email: "rep@example.com"}
	ctx = WithSession(ctx, s)

	got, ok := SessionFromContext(ctx)
	if !ok {
		t.Fatal("expected session to be present")
	}
	if got != s {
		t.Fatalf("session mismatch: got %+v", got)
	}
	if !got.IsAdmin() {
		t.Error("expected admin role")
	}
}

func TestSessionMissingUserID(t *testing.T) {
	ctx := WithSession(context.Background(), Session{AccountID: "a1"})
	if _, ok := SessionFromContext(ctx); ok {
		t.Fatal("session without user id should not be treated as present")
	}
}
