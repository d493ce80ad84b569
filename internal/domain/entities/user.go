package entities

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// MaxActiveSessions bounds the per-user session list. Inserting beyond the
// cap evicts the oldest session by creation time.
const MaxActiveSessions = 10

var (
	// ErrProviderAlreadyLinked is returned when linking a provider that is
	// already attached to the user.
	ErrProviderAlreadyLinked = errors.New("provider already linked to this account")

	// ErrLastProvider is returned when unlinking would leave the user with
	// no authentication method.
	ErrLastProvider = errors.New("cannot unlink the only authentication provider")

	// ErrProviderNotLinked is returned when unlinking a provider the user
	// does not have.
	ErrProviderNotLinked = errors.New("provider not linked to this account")
)

// Role represents user roles in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Provider identifies a supported OAuth provider
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ValidProvider reports whether name is one of the supported providers.
func ValidProvider(name string) bool {
	switch Provider(name) {
	case ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// ProviderLink is one linked OAuth provider identity on a user.
// A user holds at most one link per provider name, and a given
// (provider, provider id) pair belongs to at most one user.
type ProviderLink struct {
	Name       Provider  `json:"name"`
	ProviderID string    `json:"provider_id"`
	LinkedAt   time.Time `json:"linked_at"`
}

// Session is a revocable server-side session record. SessionID is the
// revocation handle carried in token claims; ExpiresAt records the access
// token expiry issued at login. The session itself stays revocable until
// removed from the list.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

// User is the identity record owning provider links and active sessions.
// Invariant: Providers is never empty for a persisted user.
type User struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	AvatarURL      *string        `json:"avatar_url,omitempty"`
	Roles          []Role         `json:"roles"`
	Providers      []ProviderLink `json:"providers"`
	ActiveSessions []Session      `json:"-"` // never serialize to JSON
	LastLoginAt    time.Time      `json:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Version supports optimistic concurrency on the persisted document.
	Version int64 `json:"-"`
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasRole checks if the user has a specific role
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user is an admin
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// FindProvider returns the link for the named provider, if present.
func (u *User) FindProvider(name Provider) (ProviderLink, bool) {
	for _, p := range u.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderLink{}, false
}

// HasProviderID reports whether the exact (provider, provider id) pair is
// linked to this user.
func (u *User) HasProviderID(name Provider, providerID string) bool {
	for _, p := range u.Providers {
		if p.Name == name && p.ProviderID == providerID {
			return true
		}
	}
	return false
}

// LinkProvider appends a new provider link. Fails if the provider name is
// already attached to this user.
func (u *User) LinkProvider(name Provider, providerID string, now time.Time) error {
	if _, ok := u.FindProvider(name); ok {
		return ErrProviderAlreadyLinked
	}
	u.Providers = append(u.Providers, ProviderLink{
		Name:       name,
		ProviderID: providerID,
		LinkedAt:   now,
	})
	return nil
}

// UnlinkProvider removes the named provider. A user must always retain at
// least one provider, so removing the last entry fails.
func (u *User) UnlinkProvider(name Provider) error {
	if _, ok := u.FindProvider(name); !ok {
		return ErrProviderNotLinked
	}
	if len(u.Providers) == 1 {
		return ErrLastProvider
	}
	kept := u.Providers[:0]
	for _, p := range u.Providers {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	u.Providers = kept
	return nil
}

// AddSession appends a session record, evicting the oldest sessions by
// creation time once the list exceeds MaxActiveSessions.
func (u *User) AddSession(s Session) {
	u.ActiveSessions = append(u.ActiveSessions, s)
	if len(u.ActiveSessions) > MaxActiveSessions {
		sort.SliceStable(u.ActiveSessions, func(i, j int) bool {
			return u.ActiveSessions[i].CreatedAt.Before(u.ActiveSessions[j].CreatedAt)
		})
		u.ActiveSessions = u.ActiveSessions[len(u.ActiveSessions)-MaxActiveSessions:]
	}
}

// RemoveSession deletes the session with the given id. Removal is idempotent.
func (u *User) RemoveSession(sessionID string) {
	kept := u.ActiveSessions[:0]
	for _, s := range u.ActiveSessions {
		if s.SessionID != sessionID {
			kept = append(kept, s)
		}
	}
	u.ActiveSessions = kept
}

// RemoveOtherSessions keeps only the session with the given id.
func (u *User) RemoveOtherSessions(sessionID string) {
	kept := u.ActiveSessions[:0]
	for _, s := range u.ActiveSessions {
		if s.SessionID == sessionID {
			kept = append(kept, s)
		}
	}
	u.ActiveSessions = kept
}

// HasSession reports whether the session id is present in the active list.
func (u *User) HasSession(sessionID string) bool {
	for _, s := range u.ActiveSessions {
		if s.SessionID == sessionID {
			return true
		}
	}
	return false
}

// RoleStrings returns the roles as plain strings for token claims.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}
