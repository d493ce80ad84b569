package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/repositories"
)

// UserService provides business logic for profile management
type UserService struct {
	userRepo repositories.UserRepository
	log      *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		log:      slog.Default().With(slog.String("service", "user")),
	}
}

// GetUser returns the user by id.
func (s *UserService) GetUser(ctx context.Context, userID string) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile changes the user's name and/or avatar. Nil fields are left
// untouched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if avatarURL != nil {
		if *avatarURL == "" {
			user.AvatarURL = nil
		} else {
			user.AvatarURL = avatarURL
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}

// DeleteAccount removes the user record entirely.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account deleted", slog.String("user_id", userID))
	return nil
}
