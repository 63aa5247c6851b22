package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenService() *TokenService {
	return NewTokenService([]byte("test-secret-key-32bytes-long!!"), "", 15*time.Minute)
}

func TestIssueAndValidate(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Issue("ops-bot", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "ops-bot" {
		t.Errorf("Subject = %q, want ops-bot", claims.Subject)
	}
	if claims.Issuer != DefaultIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, DefaultIssuer)
	}
	if claims.Scope != ScopeWrite {
		t.Errorf("Scope = %q, want %q", claims.Scope, ScopeWrite)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Errorf("lifetime = %v, want 15m", got)
	}
}

func TestIssue_RequiresSubject(t *testing.T) {
	if _, err := newTestTokenService().Issue("", time.Minute); err == nil {
		t.Error("Issue(\"\") error = nil, want error")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService()
	good, err := ts.Issue("a", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	otherSecret := NewTokenService([]byte("another-secret-32-bytes-long!!!"), "", time.Minute)
	wrongSecret, _ := otherSecret.Issue("a", time.Minute)

	otherIssuer := NewTokenService([]byte("test-secret-key-32bytes-long!!"), "someone-else", time.Minute)
	wrongIssuer, _ := otherIssuer.Issue("a", time.Minute)

	expiredSvc := newTestTokenService()
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredSvc.Issue("a", time.Minute)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"truncated":    good[:len(good)-4],
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
