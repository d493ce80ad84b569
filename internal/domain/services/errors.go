package services

import (
	"errors"
	"fmt"

	"github.com/voralabs/vora/internal/domain/repositories"
)

var (
	// ErrSessionNotFound is returned when revoking a session the user
	// does not have.
	ErrSessionNotFound = errors.New("session not found")

	// ErrVerificationUnsupported is returned when direct token
	// verification is requested for a provider that cannot do it.
	ErrVerificationUnsupported = errors.New("provider does not support token verification")
)

// Redirect error codes surfaced to the frontend after a failed callback.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidState         = "invalid_state"
	CodeProviderMismatch     = "provider_mismatch"
	CodeUserNotFound         = "user_not_found"
	CodeAuthenticationFailed = "authentication_failed"
)

// CallbackError classifies a failed login callback. Code is what the
// browser sees in the failure redirect; Err keeps the cause for logs.
type CallbackError struct {
	Code string
	Err  error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("callback failed (%s)", e.Code)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// IsUserNotFound checks if the error indicates user not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound)
}
