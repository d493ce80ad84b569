package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/domain/entities"
	"github.com/voralabs/vora/internal/domain/repositories"
)

// stubUserRepo serves users by id; the write methods are never reached by
// the middleware.
type stubUserRepo struct {
	users map[string]*entities.User
}

func (r *stubUserRepo) Create(ctx context.Context, user *entities.User) error { return nil }

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return nil, repositories.ErrUserNotFound
}

func (r *stubUserRepo) GetByProvider(ctx context.Context, provider entities.Provider, providerID string) (*entities.User, error) {
	return nil, repositories.ErrUserNotFound
}

func (r *stubUserRepo) Update(ctx context.Context, user *entities.User) error { return nil }

func (r *stubUserRepo) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	return nil
}

func (r *stubUserRepo) Delete(ctx context.Context, id string) error { return nil }

type gateEnv struct {
	tokens *auth.TokenService
	repo   *stubUserRepo
	mw     *AuthMiddleware
	user   *entities.User
}

func newGateEnv() *gateEnv {
	user := &entities.User{
		ID:    "u1",
		Email: "user@example.com",
		Name:  "Test User",
		Roles: []entities.Role{entities.RoleUser},
	}
	user.AddSession(entities.Session{SessionID: "sess-1", CreatedAt: time.Now()})

	repo := &stubUserRepo{users: map[string]*entities.User{"u1": user}}
	tokens := auth.NewTokenService("test-key", 15*time.Minute, time.Hour)
	return &gateEnv{
		tokens: tokens,
		repo:   repo,
		mw:     NewAuthMiddleware(tokens, repo),
		user:   user,
	}
}

func (e *gateEnv) accessToken(t *testing.T, sessionID string) string {
	t.Helper()
	token, _, err := e.tokens.IssueAccessToken(e.user.ID, e.user.Email, e.user.Name, e.user.RoleStrings(), sessionID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return token
}

func okHandler(t *testing.T, sawUser *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.GetUserFromContext(r.Context()); err == nil {
			*sawUser = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errorReason(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("bad error body %q: %v", body, err)
	}
	return payload.Error
}

func TestRequireMissingToken(t *testing.T) {
	e := newGateEnv()
	var saw bool

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	rec := httptest.NewRecorder()
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonMissingToken {
		t.Errorf("expected %s, got %s", ReasonMissingToken, reason)
	}
	if saw {
		t.Error("handler must not run")
	}
}

func TestRequireExpiredToken(t *testing.T) {
	e := newGateEnv()
	expired := auth.NewTokenService("test-key", -time.Minute, time.Hour)
	token, _, err := expired.IssueAccessToken("u1", "user@example.com", "Test User", nil, "sess-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonTokenExpired {
		t.Errorf("expected %s, got %s", ReasonTokenExpired, reason)
	}
}

func TestRequireMalformedToken(t *testing.T) {
	e := newGateEnv()

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonTokenMalformed {
		t.Errorf("expected %s, got %s", ReasonTokenMalformed, reason)
	}
}

func TestRequireRevokedSession(t *testing.T) {
	e := newGateEnv()
	token := e.accessToken(t, "sess-1")
	// The session disappears between issue and use.
	e.user.RemoveSession("sess-1")

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonSessionRevoked {
		t.Errorf("expected %s, got %s", ReasonSessionRevoked, reason)
	}
}

func TestRequireUnknownUser(t *testing.T) {
	e := newGateEnv()
	token := e.accessToken(t, "sess-1")
	delete(e.repo.users, "u1")

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonUserNotFound {
		t.Errorf("expected %s, got %s", ReasonUserNotFound, reason)
	}
}

func TestRequireValidCookie(t *testing.T) {
	e := newGateEnv()
	token := e.accessToken(t, "sess-1")

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !saw {
		t.Error("expected the user on the request context")
	}
}

func TestRequireRejectsRefreshToken(t *testing.T) {
	e := newGateEnv()
	token, _, err := e.tokens.IssueRefreshToken("u1", "user@example.com", "sess-1")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Require(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reason := errorReason(t, rec.Body.Bytes()); reason != ReasonTokenInvalid {
		t.Errorf("expected %s, got %s", ReasonTokenInvalid, reason)
	}
}

func TestOptionalAnonymous(t *testing.T) {
	e := newGateEnv()

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Optional(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous pass-through, got %d", rec.Code)
	}
	if saw {
		t.Error("expected no user on the context")
	}
}

func TestOptionalWithToken(t *testing.T) {
	e := newGateEnv()
	token := e.accessToken(t, "sess-1")

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.Optional(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !saw {
		t.Error("expected the user on the request context")
	}
}

func TestRequireRole(t *testing.T) {
	e := newGateEnv()
	token := e.accessToken(t, "sess-1")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var saw bool
	e.mw.RequireRole("admin")(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	// Grant the role and a fresh token carrying it.
	e.user.Roles = append(e.user.Roles, entities.RoleAdmin)
	token = e.accessToken(t, "sess-1")

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.mw.RequireRole("admin")(okHandler(t, &saw)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}
