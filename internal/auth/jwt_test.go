package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService() *TokenService {
	return NewTokenService("test-signing-key", 15*time.Minute, 7*24*time.Hour)
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	svc := newTestService()

	token, expiresAt, err := svc.IssueAccessToken("u1", "user@example.com", "Test User", []string{"user"}, "sess1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if time.Until(expiresAt) > 15*time.Minute || time.Until(expiresAt) < 14*time.Minute {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	claims, err := svc.Verify(token, UseAccess)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("expected UserID=u1, got %v", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email round trip, got %v", claims.Email)
	}
	if claims.SessionID != "sess1" {
		t.Errorf("expected SessionID=sess1, got %v", claims.SessionID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "user" {
		t.Errorf("expected roles [user], got %v", claims.Roles)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := NewTokenService("test-signing-key", -1*time.Minute, 7*24*time.Hour)

	token, _, err := svc.IssueAccessToken("u1", "user@example.com", "", nil, "sess1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = svc.Verify(token, UseAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	svc := newTestService()
	other := NewTokenService("different-key", 15*time.Minute, 7*24*time.Hour)

	token, _, err := svc.IssueAccessToken("u1", "user@example.com", "", nil, "sess1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = other.Verify(token, UseAccess)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	svc := newTestService()

	_, err := svc.Verify("not-a-jwt", UseAccess)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestVerifyWrongUse(t *testing.T) {
	svc := newTestService()

	refresh, _, err := svc.IssueRefreshToken("u1", "user@example.com", "sess1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = svc.Verify(refresh, UseAccess)
	if !errors.Is(err, ErrWrongTokenUse) {
		t.Errorf("expected ErrWrongTokenUse, got %v", err)
	}
	if _, err := svc.Verify(refresh, UseRefresh); err != nil {
		t.Errorf("refresh token should verify as refresh, got %v", err)
	}
}

func TestGenerateSessionID(t *testing.T) {
	a, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected unique session ids")
	}
}
