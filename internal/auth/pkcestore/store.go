// Package pkcestore holds in-flight authorization state between the
// initiation redirect and the provider callback. Entries are single-use
// and short-lived.
package pkcestore

import (
	"context"
	"time"
)

// Session is the per-login state saved at initiation and consumed exactly
// once at the callback.
type Session struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	LinkAccount  bool      `json:"link_account,omitempty"`
	LinkUserID   string    `json:"link_user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// expired reports whether the entry has passed its deadline. An entry saved
// with ttl<=0 is expired from the moment it was written.
func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Store maps opaque state tokens to pending login sessions.
type Store interface {
	// Save records the session under state for at most ttl.
	Save(ctx context.Context, state string, session Session, ttl time.Duration) error

	// Get returns the session for state. Expired or unknown states report
	// found=false.
	Get(ctx context.Context, state string) (Session, bool, error)

	// Delete removes the state. Deleting an absent state is not an error.
	Delete(ctx context.Context, state string) error

	// Count reports how many pending logins are currently held.
	Count() int

	// Close releases background resources.
	Close() error
}
