package oauth

import (
	"errors"
	"fmt"
)

// ErrProfileIncomplete is returned when a provider profile lacks the fields
// needed to resolve an identity (provider id or email).
var ErrProfileIncomplete = errors.New("provider profile missing required fields")

// ExchangeError carries the provider's response when a code exchange or
// token verification is rejected.
type ExchangeError struct {
	Provider    string
	StatusCode  int
	ErrorCode   string
	Description string
}

func (e *ExchangeError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s token exchange failed: %s (%s)", e.Provider, e.ErrorCode, e.Description)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s token exchange failed: %s", e.Provider, e.ErrorCode)
	}
	return fmt.Sprintf("%s token exchange failed with status %d", e.Provider, e.StatusCode)
}
