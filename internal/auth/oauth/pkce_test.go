package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestCodeChallengeDerivation(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	if got := CodeChallenge(verifier); got != want {
		t.Errorf("CodeChallenge = %q, want %q", got, want)
	}
}

func TestGenerateCodeVerifier(t *testing.T) {
	a, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 32 bytes base64url without padding is 43 chars, inside RFC 7636's
	// 43..128 window.
	if len(a) != 43 {
		t.Errorf("expected 43 chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected unique verifiers")
	}
	if _, err := base64.RawURLEncoding.DecodeString(a); err != nil {
		t.Errorf("verifier is not base64url: %v", err)
	}
}

func TestGenerateStateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if seen[state] {
			t.Fatal("state collision")
		}
		seen[state] = true
	}
}
