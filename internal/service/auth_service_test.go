package service

import (
	"errors"
	"testing"
	"time"

	"github.com/testply/guestexam-backend/internal/config"
)

func testAuthService(secret string) *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret: secret,
		JWTExpiry: time.Hour,
	})
}

func TestIssueAndValidateGuestToken(t *testing.T) {
	svc := testAuthService("test-secret")

	token, err := svc.IssueGuestToken("g-123-abcdef")
	if err != nil {
		t.Fatalf("IssueGuestToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.GuestID != "g-123-abcdef" {
		t.Errorf("guest id = %q, want g-123-abcdef", claims.GuestID)
	}
	if claims.Subject != "g-123-abcdef" {
		t.Errorf("subject = %q, want guest id", claims.Subject)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testAuthService("test-secret")

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ValidateToken(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q): err = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := testAuthService("secret-one").IssueGuestToken("g-1")
	if err != nil {
		t.Fatalf("IssueGuestToken: %v", err)
	}

	if _, err := testAuthService("secret-two").ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("cross-secret validation: err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: -time.Minute,
	})

	token, err := svc.IssueGuestToken("g-1")
	if err != nil {
		t.Fatalf("IssueGuestToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v, want ErrInvalidToken", err)
	}
}
