package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/domain/services"
)

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := h.userService.GetUser(r.Context(), userCtx.UserID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "user_not_found", "user no longer exists")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    userPayload(user),
	})
}

// UpdateProfile patches the user's name and/or avatar.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req struct {
		Name      *string `json:"name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Name == nil && req.AvatarURL == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userCtx.UserID, req.Name, req.AvatarURL)
	if err != nil {
		h.log.Error("profile update failed",
			slog.String("user_id", userCtx.UserID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not update profile")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    userPayload(user),
	})
}

// DeleteAccount removes the user entirely and clears their cookies.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), userCtx.UserID); err != nil {
		h.log.Error("account deletion failed",
			slog.String("user_id", userCtx.UserID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not delete account")
		return
	}

	h.clearAuthCookies(w)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "account deleted",
	})
}

// Sessions lists the user's active sessions, flagging the current one.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	sessions, err := h.authService.ListSessions(r.Context(), userCtx.UserID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not list sessions")
		return
	}

	payload := make([]map[string]interface{}, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, map[string]interface{}{
			"session_id": s.SessionID,
			"created_at": s.CreatedAt,
			"expires_at": s.ExpiresAt,
			"user_agent": s.UserAgent,
			"ip":         s.IP,
			"current":    s.SessionID == userCtx.SessionID,
		})
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": payload,
	})
}

// RevokeSession revokes one session by id.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	sessionID := mux.Vars(r)["sessionId"]
	if err := h.authService.RevokeSession(r.Context(), userCtx.UserID, sessionID); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			h.respondError(w, http.StatusNotFound, "session_not_found", "no such session")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not revoke session")
		return
	}

	// Revoking your own session is a logout.
	if sessionID == userCtx.SessionID {
		h.clearAuthCookies(w)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "session revoked",
	})
}

// RevokeAllSessions drops every session except the current one.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	revoked, err := h.authService.RevokeOtherSessions(r.Context(), userCtx.UserID, userCtx.SessionID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "server_error", "could not revoke sessions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"revoked": revoked,
	})
}
