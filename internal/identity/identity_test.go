package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier("test-signing-key", "healthdesk")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := newTestVerifier(t)

	tok, err := v.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	uid, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "u1" {
		t.Errorf("uid = %q, want u1", uid)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := newTestVerifier(t)

	expired, err := v.Issue("u1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	other, _ := NewVerifier("other-key", "healthdesk")
	wrongKey, _ := other.Issue("u1", time.Hour)
	otherIss, _ := NewVerifier("test-signing-key", "someone-else")
	wrongIssuer, _ := otherIss.Issue("u1", time.Hour)

	cases := map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"garbage":      "not-a-token",
		"empty":        "",
	}
	for name, tok := range cases {
		if _, err := v.Verify(tok); err == nil {
			t.Errorf("%s: Verify succeeded, want error", name)
		}
	}
}

func TestNewVerifier_RequiresKey(t *testing.T) {
	if _, err := NewVerifier("  ", "x"); err == nil {
		t.Fatal("expected error for blank key")
	}
}

func TestSession_Lifecycle(t *testing.T) {
	v := newTestVerifier(t)
	s := NewSession(v)
	ctx := context.Background()

	if _, err := s.UserID(ctx); !errors.Is(err, ErrAbsent) {
		t.Fatalf("before login: error = %v, want ErrAbsent", err)
	}

	tok, _ := v.Issue("u7", time.Hour)
	if _, err := s.Login(tok); err != nil {
		t.Fatalf("Login: %v", err)
	}
	uid, err := s.UserID(ctx)
	if err != nil || uid != "u7" {
		t.Fatalf("UserID = %q, %v; want u7", uid, err)
	}

	if _, err := s.Login("bad"); err == nil {
		t.Error("Login with bad token succeeded")
	}
	if uid, _ := s.UserID(ctx); uid != "u7" {
		t.Errorf("failed login changed the user to %q", uid)
	}

	s.Logout()
	if _, err := s.UserID(ctx); !errors.Is(err, ErrAbsent) {
		t.Errorf("after logout: error = %v, want ErrAbsent", err)
	}
}

func TestFromContext(t *testing.T) {
	if _, err := FromContext.UserID(context.Background()); !errors.Is(err, ErrAbsent) {
		t.Errorf("empty context: error = %v, want ErrAbsent", err)
	}
	uid, err := FromContext.UserID(WithUser(context.Background(), "u3"))
	if err != nil || uid != "u3" {
		t.Errorf("UserID = %q, %v; want u3", uid, err)
	}
}
