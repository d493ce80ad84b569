package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/services"
	"github.com/voralabs/vora/server/internal/http/middleware"
)

// Initiate starts the OAuth flow for a provider and redirects the browser
// to its consent page. With ?link=true the callback attaches the provider
// to an existing account instead of logging in.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	if !entities.ValidProvider(providerName) {
		h.respondError(w, http.StatusNotFound, "unknown_provider", "unsupported authentication provider")
		return
	}

	link := r.URL.Query().Get("link") == "true"
	linkUserID := r.URL.Query().Get("userId")
	// An authenticated caller links to their own account, whatever the
	// query says.
	if userCtx, err := auth.GetUserFromContext(r.Context()); err == nil {
		linkUserID = userCtx.UserID
	}
	if link && linkUserID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "link requires authentication or a userId")
		return
	}

	redirectURL, err := h.authService.StartLogin(r.Context(), providerName, link, linkUserID)
	if err != nil {
		h.log.Error("failed to start login",
			slog.String("provider", providerName),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not start login")
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Callback handles the provider redirect. Every failure ends in a frontend
// redirect carrying a stable error code; success delivers tokens per the
// configured channel.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	query := r.URL.Query()

	result, err := h.authService.HandleCallback(r.Context(), providerName,
		query.Get("state"), query.Get("code"), query.Get("error"),
		services.ClientInfo{
			UserAgent: r.UserAgent(),
			IP:        middleware.ClientIP(r),
		})
	if err != nil {
		code := services.CodeAuthenticationFailed
		var cbErr *services.CallbackError
		if errors.As(err, &cbErr) {
			code = cbErr.Code
		}
		h.log.Warn("login callback failed",
			slog.String("provider", providerName),
			slog.String("code", code),
			slog.String("error", err.Error()))
		h.failureRedirect(w, r, code)
		return
	}

	if h.delivery == DeliveryCookie {
		h.setAuthCookies(w, result)
	}
	h.successRedirect(w, r, result)
}

// VerifyToken logs in from a provider token the client obtained directly
// (e.g. the Facebook JS SDK). Only providers that can validate such tokens
// accept this.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]
	if !entities.ValidProvider(providerName) {
		h.respondError(w, http.StatusNotFound, "unknown_provider", "unsupported authentication provider")
		return
	}

	var req struct {
		AccessToken string `json:"accessToken"`
		UserID      string `json:"userID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" || req.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "accessToken and userID are required")
		return
	}

	result, err := h.authService.VerifyProviderToken(r.Context(), providerName, req.AccessToken, req.UserID,
		services.ClientInfo{
			UserAgent: r.UserAgent(),
			IP:        middleware.ClientIP(r),
		})
	if err != nil {
		if errors.Is(err, services.ErrVerificationUnsupported) {
			h.respondError(w, http.StatusBadRequest, "unsupported", "provider does not support token verification")
			return
		}
		h.log.Warn("token verification failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusUnauthorized, "authentication_failed", "token could not be verified")
		return
	}

	if h.delivery == DeliveryCookie {
		h.setAuthCookies(w, result)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"user":          userPayload(result.User),
		"token":         result.AccessToken,
		"refresh_token": result.RefreshToken,
		"expires_at":    result.AccessExpiresAt,
	})
}

// Logout revokes the current session and clears the token cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if err := h.authService.Logout(r.Context(), userCtx.UserID, userCtx.SessionID); err != nil {
		h.log.Error("logout failed",
			slog.String("user_id", userCtx.UserID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	h.clearAuthCookies(w)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "logged out",
	})
}

// Unlink detaches a provider from the current account.
func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	providerName := mux.Vars(r)["provider"]
	if !entities.ValidProvider(providerName) {
		h.respondError(w, http.StatusNotFound, "unknown_provider", "unsupported authentication provider")
		return
	}

	user, err := h.authService.UnlinkProvider(r.Context(), userCtx.UserID, entities.Provider(providerName))
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrProviderNotLinked):
			h.respondError(w, http.StatusNotFound, "not_linked", "provider is not linked to this account")
		case errors.Is(err, entities.ErrLastProvider):
			h.respondError(w, http.StatusConflict, "last_provider", "cannot unlink the only sign-in method")
		default:
			h.log.Error("unlink failed",
				slog.String("user_id", userCtx.UserID),
				slog.String("error", err.Error()))
			h.respondError(w, http.StatusInternalServerError, "server_error", "unlink failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    userPayload(user),
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
