package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/domain/repositories"
)

// 401 reasons returned to clients so they can distinguish "log in again"
// from "refresh the token".
const (
	ReasonMissingToken   = "missing_token"
	ReasonTokenExpired   = "token_expired"
	ReasonTokenInvalid   = "token_invalid"
	ReasonTokenMalformed = "token_malformed"
	ReasonUserNotFound   = "user_not_found"
	ReasonSessionRevoked = "session_revoked"
)

// AuthMiddleware authenticates requests from the access token and attaches
// the user to the request context.
type AuthMiddleware struct {
	tokens   *auth.TokenService
	userRepo repositories.UserRepository
	log      *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokens *auth.TokenService, userRepo repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		userRepo: userRepo,
		log:      slog.Default().With(slog.String("component", "auth_middleware")),
	}
}

// Require rejects requests without a live, verifiable session.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, reason := m.authenticate(r)
		if userCtx == nil {
			unauthorized(w, reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), userCtx)))
	})
}

// Optional attaches the user when a valid token is present but lets
// anonymous requests through.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userCtx, _ := m.authenticate(r); userCtx != nil {
			r = r.WithContext(auth.SetUserInContext(r.Context(), userCtx))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole layers a role check on top of Require.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, err := auth.GetUserFromContext(r.Context())
			if err != nil || !userCtx.HasRole(role) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// authenticate runs the full gate: extract, verify, load user, check the
// session is still on the user's active list.
func (m *AuthMiddleware) authenticate(r *http.Request) (*auth.UserContext, string) {
	token, ok := auth.TokenFromRequest(r)
	if !ok {
		return nil, ReasonMissingToken
	}

	claims, err := m.tokens.Verify(token, auth.UseAccess)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, ReasonTokenExpired
		case errors.Is(err, auth.ErrTokenMalformed):
			return nil, ReasonTokenMalformed
		}
		return nil, ReasonTokenInvalid
	}

	user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ReasonUserNotFound
		}
		m.log.Error("failed to load user for auth check", slog.String("error", err.Error()))
		return nil, ReasonTokenInvalid
	}

	// A valid token for a revoked session is still a dead token.
	if !user.HasSession(claims.SessionID) {
		m.log.Warn("token presented for revoked session",
			slog.String("user_id", claims.UserID),
			slog.String("session_id", claims.SessionID))
		return nil, ReasonSessionRevoked
	}

	return &auth.UserContext{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     user.RoleStrings(),
		SessionID: claims.SessionID,
	}, ""
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   reason,
	})
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "forbidden",
	})
}
