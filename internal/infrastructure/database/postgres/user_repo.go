package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/repositories"
	"github.com/voralabs/vora/internal/pkg/idgen"
	"github.com/voralabs/vora/internal/pkg/metrics"
)

// UserRepository implements the UserRepository interface for PostgreSQL.
// Providers, roles, and active sessions live in JSONB columns so the user
// record is read and written as one document.
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Email          string         `db:"email"`
	AvatarURL      sql.NullString `db:"avatar_url"`
	Roles          []byte         `db:"roles"`           // jsonb
	Providers      []byte         `db:"providers"`       // jsonb
	ActiveSessions []byte         `db:"active_sessions"` // jsonb
	LastLoginAt    sql.NullTime   `db:"last_login_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	Version        int64          `db:"version"`
}

// toEntity converts a userRow to a domain entity
func (r *userRow) toEntity() (*entities.User, error) {
	user := &entities.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}

	if r.AvatarURL.Valid {
		user.AvatarURL = &r.AvatarURL.String
	}
	if r.LastLoginAt.Valid {
		user.LastLoginAt = r.LastLoginAt.Time
	}

	if len(r.Roles) > 0 {
		if err := json.Unmarshal(r.Roles, &user.Roles); err != nil {
			return nil, fmt.Errorf("failed to decode roles: %w", err)
		}
	}
	if len(r.Providers) > 0 {
		if err := json.Unmarshal(r.Providers, &user.Providers); err != nil {
			return nil, fmt.Errorf("failed to decode providers: %w", err)
		}
	}
	if len(r.ActiveSessions) > 0 {
		if err := json.Unmarshal(r.ActiveSessions, &user.ActiveSessions); err != nil {
			return nil, fmt.Errorf("failed to decode active sessions: %w", err)
		}
	}

	return user, nil
}

// userRowFromEntity converts a domain entity to a userRow
func userRowFromEntity(user *entities.User) (*userRow, error) {
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roles: %w", err)
	}
	providers, err := json.Marshal(user.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode providers: %w", err)
	}
	sessions, err := json.Marshal(user.ActiveSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode active sessions: %w", err)
	}

	row := &userRow{
		ID:             user.ID,
		Name:           user.Name,
		Email:          entities.NormalizeEmail(user.Email),
		Roles:          roles,
		Providers:      providers,
		ActiveSessions: sessions,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
		Version:        user.Version,
	}

	if user.AvatarURL != nil {
		row.AvatarURL = sql.NullString{String: *user.AvatarURL, Valid: true}
	}
	if !user.LastLoginAt.IsZero() {
		row.LastLoginAt = sql.NullTime{Time: user.LastLoginAt, Valid: true}
	}

	return row, nil
}

const userColumns = `id, name, email, avatar_url, roles, providers, active_sessions,
		       last_login_at, created_at, updated_at, version`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), 1, err)
	}()

	if user.ID == "" {
		user.ID = idgen.GenerateID()
	}

	r.log.Debug("creating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email))

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Version = 1

	row, err := userRowFromEntity(user)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (
			id, name, email, avatar_url, roles, providers, active_sessions,
			last_login_at, created_at, updated_at, version
		) VALUES (
			:id, :name, :email, :avatar_url, :roles, :providers, :active_sessions,
			:last_login_at, :created_at, :updated_at, :version
		)`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			err = repositories.ErrEmailTaken
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rowCount = 1
	return row.toEntity()
}

// GetByEmail retrieves a user by their email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_email", time.Since(start), rowCount, err)
	}()

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err = r.db.GetContext(ctx, &row, query, entities.NormalizeEmail(email))
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	rowCount = 1
	return row.toEntity()
}

// GetByProvider retrieves the user owning the (provider, provider id) pair
// via JSONB containment on the providers column.
func (r *UserRepository) GetByProvider(ctx context.Context, provider entities.Provider, providerID string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_provider", time.Since(start), rowCount, err)
	}()

	match, err := json.Marshal([]map[string]string{{
		"name":        string(provider),
		"provider_id": providerID,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider match: %w", err)
	}

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE providers @> $1`

	err = r.db.GetContext(ctx, &row, query, match)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by provider: %w", err)
	}

	rowCount = 1
	return row.toEntity()
}

// Update persists the full user document. The version guard turns lost
// updates into ErrVersionConflict so callers can re-read and retry.
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "update", time.Since(start), rowsAffected, err)
	}()

	r.log.Debug("updating user",
		slog.String("id", user.ID),
		slog.Int64("version", user.Version))

	user.UpdatedAt = time.Now()

	row, err := userRowFromEntity(user)
	if err != nil {
		return err
	}

	query := `
		UPDATE users SET
			name = :name,
			email = :email,
			avatar_url = :avatar_url,
			roles = :roles,
			providers = :providers,
			active_sessions = :active_sessions,
			last_login_at = :last_login_at,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			err = repositories.ErrEmailTaken
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID); checkErr != nil {
			err = checkErr
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if exists {
			err = repositories.ErrVersionConflict
		} else {
			err = repositories.ErrUserNotFound
		}
		return err
	}

	user.Version++
	return nil
}

// UpdateLastLogin updates the user's last login timestamp
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "update_last_login", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, loginTime, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// Delete removes a user and its owned substructures
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "delete", time.Since(start), rowsAffected, err)
	}()

	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ = result.RowsAffected()
	// Delete is idempotent; a missing user is not an error
	return nil
}
