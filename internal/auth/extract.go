package auth

import (
	"net/http"
	"strings"
)

// Cookie names used for token delivery.
const (
	AccessTokenCookie  = "vora_token"
	RefreshTokenCookie = "vora_refresh_token"
)

// TokenFromRequest extracts the access token from a request. The cookie
// wins over the Authorization header when both are present.
func TokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	return "", false
}

// RefreshTokenFromRequest extracts the refresh token cookie.
func RefreshTokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}
