package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/config"
	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/services"
)

// DeliveryChannel selects how tokens reach the frontend after a login.
type DeliveryChannel string

const (
	DeliveryCookie   DeliveryChannel = "cookie"
	DeliveryRedirect DeliveryChannel = "redirect"
)

// Handler holds dependencies for all HTTP handlers
type Handler struct {
	authService *services.AuthService
	userService *services.UserService
	frontend    config.FrontendConfig
	delivery    DeliveryChannel
	production  bool
	log         *slog.Logger
}

// New creates a new handler with dependencies
func New(authService *services.AuthService, userService *services.UserService, cfg *config.Config) *Handler {
	return &Handler{
		authService: authService,
		userService: userService,
		frontend:    cfg.Frontend,
		delivery:    DeliveryChannel(cfg.Frontend.TokenDelivery),
		production:  cfg.IsProduction(),
		log:         slog.Default().With(slog.String("component", "http_handler")),
	}
}

// respondJSON writes a JSON body with the given status.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// respondError writes the standard error envelope.
func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// setAuthCookies delivers the token pair as httpOnly cookies. Production
// uses SameSite=None so the cookies survive the cross-site frontend;
// development keeps Lax for plain-HTTP localhost.
func (h *Handler) setAuthCookies(w http.ResponseWriter, result *services.LoginResult) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    result.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
		MaxAge:   int(time.Until(result.AccessExpiresAt).Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshTokenCookie,
		Value:    result.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
		MaxAge:   int(time.Until(result.RefreshExpiresAt).Seconds()),
	})
}

// clearAuthCookies expires both token cookies.
func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.production,
			SameSite: sameSite,
			MaxAge:   -1,
		})
	}
}

// successRedirect sends the browser back to the frontend after a login.
// Redirect delivery appends the tokens once; cookie delivery already set them.
func (h *Handler) successRedirect(w http.ResponseWriter, r *http.Request, result *services.LoginResult) {
	target := h.frontend.SuccessRedirectURL()
	if h.delivery == DeliveryRedirect {
		q := url.Values{}
		q.Set("success", "true")
		q.Set("access_token", result.AccessToken)
		q.Set("refresh_token", result.RefreshToken)
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// failureRedirect sends the browser to the frontend failure page with the
// error code.
func (h *Handler) failureRedirect(w http.ResponseWriter, r *http.Request, code string) {
	q := url.Values{}
	q.Set("error", code)
	http.Redirect(w, r, h.frontend.FailureRedirectURL()+"?"+q.Encode(), http.StatusFound)
}

// userPayload shapes a user for API responses.
func userPayload(user *entities.User) map[string]interface{} {
	providers := make([]map[string]interface{}, 0, len(user.Providers))
	for _, p := range user.Providers {
		providers = append(providers, map[string]interface{}{
			"name":      p.Name,
			"linked_at": p.LinkedAt,
		})
	}
	payload := map[string]interface{}{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"roles":     user.RoleStrings(),
		"providers": providers,
	}
	if user.AvatarURL != nil {
		payload["avatar_url"] = *user.AvatarURL
	}
	if !user.LastLoginAt.IsZero() {
		payload["last_login_at"] = user.LastLoginAt
	}
	return payload
}
