package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when creating a user with an email that
	// already belongs to another user
	ErrEmailTaken = errors.New("email already in use")

	// ErrVersionConflict is returned when an update races with another
	// writer; callers should re-read and retry
	ErrVersionConflict = errors.New("user version conflict")
)
