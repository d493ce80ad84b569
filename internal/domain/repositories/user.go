package repositories

import (
	"context"
	"time"

	"github.com/voralabs/vora/internal/domain/entities"
)

// UserRepository defines the interface for user data access.
// The store is treated as a document collaborator: providers and sessions
// are owned substructures persisted with the user record.
type UserRepository interface {
	// Create a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by their email address (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetByProvider retrieves the user owning the (provider, provider id) pair
	GetByProvider(ctx context.Context, provider entities.Provider, providerID string) (*entities.User, error)

	// Update persists the full user document, including provider links and
	// active sessions. Returns ErrVersionConflict when the stored version
	// no longer matches the entity's (lost-update protection).
	Update(ctx context.Context, user *entities.User) error

	// UpdateLastLogin updates the user's last login timestamp
	UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error

	// Delete removes a user and its owned substructures
	Delete(ctx context.Context, id string) error
}
