package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/auth/oauth"
	"github.com/voralabs/vora/internal/auth/pkcestore"
	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/repositories"
	"github.com/voralabs/vora/internal/pkg/metrics"
)

// updateRetries bounds the optimistic-concurrency retry loop on session
// mutations.
const updateRetries = 3

// LoginResult is everything a completed login produces.
type LoginResult struct {
	User             *entities.User
	SessionID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ClientInfo describes the device a login or session belongs to.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// AuthService orchestrates the OAuth login flows, identity resolution, and
// session lifecycle.
type AuthService struct {
	providers *oauth.Registry
	pending   pkcestore.Store
	tokens    *auth.TokenService
	userRepo  repositories.UserRepository
	pkceTTL   time.Duration
	log       *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(providers *oauth.Registry, pending pkcestore.Store, tokens *auth.TokenService, userRepo repositories.UserRepository, pkceTTL time.Duration) *AuthService {
	return &AuthService{
		providers: providers,
		pending:   pending,
		tokens:    tokens,
		userRepo:  userRepo,
		pkceTTL:   pkceTTL,
		log:       slog.Default().With(slog.String("service", "auth")),
	}
}

// StartLogin begins an authorization flow and returns the provider URL to
// redirect the browser to. When link is set the eventual callback attaches
// the provider to linkUserID instead of logging in.
func (s *AuthService) StartLogin(ctx context.Context, providerName string, link bool, linkUserID string) (string, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	if link && linkUserID == "" {
		return "", fmt.Errorf("link flow requires a user id")
	}

	req, err := provider.AuthorizationRequest()
	if err != nil {
		return "", fmt.Errorf("failed to build authorization request: %w", err)
	}

	session := pkcestore.Session{
		Provider:     providerName,
		CodeVerifier: req.CodeVerifier,
		Nonce:        req.Nonce,
		LinkAccount:  link,
		LinkUserID:   linkUserID,
	}
	if err := s.pending.Save(ctx, req.State, session, s.pkceTTL); err != nil {
		return "", fmt.Errorf("failed to save pending login: %w", err)
	}

	s.log.Info("login initiated",
		slog.String("provider", providerName),
		slog.Bool("link", link))

	return req.URL, nil
}

// HandleCallback drives the provider callback to a logged-in session or a
// classified CallbackError. The state entry is consumed on first touch, so
// a replayed callback fails regardless of outcome.
func (s *AuthService) HandleCallback(ctx context.Context, providerName, state, code, providerErr string, client ClientInfo) (*LoginResult, error) {
	start := time.Now()

	result, err := s.handleCallback(ctx, providerName, state, code, providerErr, client)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		var cbErr *CallbackError
		if errors.As(err, &cbErr) {
			outcome = cbErr.Code
		}
	}
	metrics.RecordLogin(providerName, outcome, time.Since(start))

	return result, err
}

func (s *AuthService) handleCallback(ctx context.Context, providerName, state, code, providerErr string, client ClientInfo) (*LoginResult, error) {
	if providerErr != "" {
		s.log.Warn("provider returned error on callback",
			slog.String("provider", providerName),
			slog.String("error", providerErr))
		s.discardPending(ctx, state)
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: fmt.Errorf("provider error: %s", providerErr)}
	}
	if state == "" || code == "" {
		s.discardPending(ctx, state)
		return nil, &CallbackError{Code: CodeInvalidRequest, Err: fmt.Errorf("missing state or code")}
	}

	pending, found, err := s.pending.Get(ctx, state)
	if err != nil {
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: err}
	}
	if !found {
		s.log.Warn("callback with unknown or expired state", slog.String("provider", providerName))
		return nil, &CallbackError{Code: CodeInvalidState, Err: fmt.Errorf("unknown or expired state")}
	}
	// Single use: burn the state before anything else can fail.
	s.discardPending(ctx, state)

	if pending.Provider != providerName {
		s.log.Warn("callback provider mismatch",
			slog.String("expected", pending.Provider),
			slog.String("got", providerName))
		return nil, &CallbackError{Code: CodeProviderMismatch, Err: fmt.Errorf("state issued for %s", pending.Provider)}
	}

	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, &CallbackError{Code: CodeInvalidRequest, Err: err}
	}

	profile, _, err := oauth.CompleteFlow(ctx, provider, code, pending.CodeVerifier)
	if err != nil {
		s.log.Warn("provider flow failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()))
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: err}
	}

	if pending.LinkAccount {
		user, err := s.linkIdentity(ctx, pending.LinkUserID, entities.Provider(providerName), profile)
		if err != nil {
			return nil, err
		}
		return s.openSession(ctx, user, client)
	}

	user, err := s.resolveIdentity(ctx, entities.Provider(providerName), profile)
	if err != nil {
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: err}
	}
	return s.openSession(ctx, user, client)
}

// discardPending burns a pending login entry once its callback has been
// seen, successful or not.
func (s *AuthService) discardPending(ctx context.Context, state string) {
	if state == "" {
		return
	}
	if err := s.pending.Delete(ctx, state); err != nil {
		s.log.Error("failed to delete pending login", slog.String("error", err.Error()))
	}
}

// VerifyProviderToken logs a user in from a client-obtained provider token.
// Only providers implementing oauth.TokenVerifier support this.
func (s *AuthService) VerifyProviderToken(ctx context.Context, providerName, accessToken, providerUserID string, client ClientInfo) (*LoginResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	verifier, ok := provider.(oauth.TokenVerifier)
	if !ok {
		return nil, ErrVerificationUnsupported
	}

	profile, err := verifier.VerifyAccessToken(ctx, accessToken, providerUserID)
	if err != nil {
		metrics.RecordLogin(providerName, "failure", 0)
		return nil, err
	}

	user, err := s.resolveIdentity(ctx, entities.Provider(providerName), profile)
	if err != nil {
		return nil, err
	}
	result, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	metrics.RecordLogin(providerName, "success", 0)
	return result, nil
}

// resolveIdentity maps a provider profile to a user: by provider pair first,
// then by email (attaching the new provider), otherwise a fresh account.
// Name and avatar refresh from the provider on every login.
func (s *AuthService) resolveIdentity(ctx context.Context, provider entities.Provider, profile *oauth.Profile) (*entities.User, error) {
	now := time.Now()

	user, err := s.userRepo.GetByProvider(ctx, provider, profile.ProviderID)
	if err == nil {
		s.syncProfile(user, profile)
		if err := s.userRepo.Update(ctx, user); err != nil && !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to sync profile: %w", err)
		}
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up provider identity: %w", err)
	}

	email := entities.NormalizeEmail(profile.Email)
	user, err = s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		// Same email, new provider: attach rather than create a duplicate.
		if linkErr := user.LinkProvider(provider, profile.ProviderID, now); linkErr != nil {
			return nil, linkErr
		}
		s.syncProfile(user, profile)
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to link provider: %w", err)
		}
		s.log.Info("provider linked to existing account",
			slog.String("user_id", user.ID),
			slog.String("provider", string(provider)))
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	user = &entities.User{
		Name:  profile.Name,
		Email: email,
		Roles: []entities.Role{entities.RoleUser},
	}
	if profile.AvatarURL != "" {
		user.AvatarURL = &profile.AvatarURL
	}
	if err := user.LinkProvider(provider, profile.ProviderID, now); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			// Lost a race with a concurrent first login for the same email.
			return s.userRepo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)))
	return user, nil
}

// linkIdentity attaches a provider to an existing account. Unlike login,
// profile data only fills fields the user has not set yet.
func (s *AuthService) linkIdentity(ctx context.Context, userID string, provider entities.Provider, profile *oauth.Profile) (*entities.User, error) {
	// The provider pair must not belong to someone else already.
	owner, err := s.userRepo.GetByProvider(ctx, provider, profile.ProviderID)
	if err == nil && owner.ID != userID {
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: entities.ErrProviderAlreadyLinked}
	}
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: err}
	}

	user, err := s.updateWithRetry(ctx, userID, func(u *entities.User) error {
		if err := u.LinkProvider(provider, profile.ProviderID, time.Now()); err != nil {
			return err
		}
		if u.Name == "" {
			u.Name = profile.Name
		}
		if u.AvatarURL == nil && profile.AvatarURL != "" {
			avatar := profile.AvatarURL
			u.AvatarURL = &avatar
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, &CallbackError{Code: CodeUserNotFound, Err: err}
		}
		return nil, &CallbackError{Code: CodeAuthenticationFailed, Err: err}
	}

	s.log.Info("provider linked",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)))
	return user, nil
}

// syncProfile refreshes mutable profile fields from the provider.
func (s *AuthService) syncProfile(user *entities.User, profile *oauth.Profile) {
	if profile.Name != "" {
		user.Name = profile.Name
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}
}

// openSession records a new session on the user and issues the token pair.
func (s *AuthService) openSession(ctx context.Context, user *entities.User, client ClientInfo) (*LoginResult, error) {
	sessionID, err := auth.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	session := entities.Session{
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.AccessTTL()),
		UserAgent: client.UserAgent,
		IP:        client.IP,
	}

	user, err = s.updateWithRetry(ctx, user.ID, func(u *entities.User) error {
		u.AddSession(session)
		u.LastLoginAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	accessToken, accessExp, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Name, user.RoleStrings(), sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefreshToken(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}

	s.log.Info("session opened",
		slog.String("user_id", user.ID),
		slog.String("session_id", sessionID))

	return &LoginResult{
		User:             user,
		SessionID:        sessionID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout revokes the session the request authenticated with.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	_, err := s.updateWithRetry(ctx, userID, func(u *entities.User) error {
		u.RemoveSession(sessionID)
		return nil
	})
	if err != nil {
		return err
	}
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()

	s.log.Info("session revoked",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID))
	return nil
}

// UnlinkProvider detaches a provider from the user's account. The last
// provider cannot be removed.
func (s *AuthService) UnlinkProvider(ctx context.Context, userID string, provider entities.Provider) (*entities.User, error) {
	user, err := s.updateWithRetry(ctx, userID, func(u *entities.User) error {
		return u.UnlinkProvider(provider)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("provider unlinked",
		slog.String("user_id", userID),
		slog.String("provider", string(provider)))
	return user, nil
}

// ListSessions returns the user's active sessions. Entries stay listed
// until revoked or evicted; ExpiresAt only marks when the issued access
// token lapsed.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]entities.Session, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]entities.Session(nil), user.ActiveSessions...), nil
}

// RevokeSession removes one session by id.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.updateWithRetry(ctx, userID, func(u *entities.User) error {
		if !u.HasSession(sessionID) {
			return ErrSessionNotFound
		}
		u.RemoveSession(sessionID)
		return nil
	})
	if err != nil {
		return err
	}
	metrics.SessionsRevoked.WithLabelValues("revoke").Inc()
	return nil
}

// RevokeOtherSessions removes every session except the current one and
// reports how many were dropped.
func (s *AuthService) RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int, error) {
	revoked := 0
	_, err := s.updateWithRetry(ctx, userID, func(u *entities.User) error {
		revoked = 0
		for _, session := range u.ActiveSessions {
			if session.SessionID != currentSessionID {
				revoked++
			}
		}
		u.RemoveOtherSessions(currentSessionID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevoked.WithLabelValues("revoke_all").Add(float64(revoked))
	return revoked, nil
}

// updateWithRetry loads the user, applies mutate, and persists, retrying a
// bounded number of times when a concurrent writer bumps the version.
func (s *AuthService) updateWithRetry(ctx context.Context, userID string, mutate func(*entities.User) error) (*entities.User, error) {
	var lastErr error
	for attempt := 0; attempt < updateRetries; attempt++ {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		err = s.userRepo.Update(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("user update kept conflicting: %w", lastErr)
}
