package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseSessionToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := mgr.IssueSessionToken("A@X.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	claims, err := mgr.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("email must be normalized: %q", claims.Email)
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry mismatch: %v vs %v", claims.ExpiresAt, expiresAt)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	mgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := mgr.IssueSessionToken("a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mgr.now = time.Now
	if _, err := mgr.ParseSessionToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Hour)
	verifier := NewJWTManager("secret-b", time.Hour)

	token, _, err := issuer.IssueSessionToken("a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifier.ParseSessionToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	for _, raw := range []string{"", "   ", "not.a.token"} {
		if _, err := mgr.ParseSessionToken(raw); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", raw, err)
		}
	}
}

func TestIssueRequiresSecretAndEmail(t *testing.T) {
	if _, _, err := NewJWTManager("", time.Hour).IssueSessionToken("a@x.com"); err == nil {
		t.Fatalf("empty secret must fail")
	}
	if _, _, err := NewJWTManager("s", time.Hour).IssueSessionToken("  "); err == nil {
		t.Fatalf("empty email must fail")
	}
}
