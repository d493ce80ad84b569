package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// requestTimeout bounds every outbound call to a provider.
const requestTimeout = 10 * time.Second

// Profile is the normalized identity returned by every provider.
type Profile struct {
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Tokens holds the provider-issued credentials from a code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// AuthRequest is everything the caller needs to start an authorization flow:
// the redirect URL plus the secrets that must survive until the callback.
type AuthRequest struct {
	URL          string
	State        string
	CodeVerifier string
	Nonce        string
}

// Provider defines the interface for OAuth2/PKCE identity providers.
type Provider interface {
	// Name returns the provider identifier (e.g. "google", "facebook")
	Name() string

	// AuthorizationRequest builds a fresh authorization URL with new
	// state, PKCE verifier, and nonce.
	AuthorizationRequest() (*AuthRequest, error)

	// Exchange redeems an authorization code together with the PKCE
	// verifier saved at initiation.
	Exchange(ctx context.Context, code, verifier string) (*Tokens, error)

	// FetchProfile retrieves the normalized user profile for an access token.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// TokenVerifier is implemented by providers that can validate an access
// token obtained out of band (client-side SDK login).
type TokenVerifier interface {
	// VerifyAccessToken checks the token belongs to this app and to the
	// claimed user, then returns the profile.
	VerifyAccessToken(ctx context.Context, accessToken, userID string) (*Profile, error)
}

// CompleteFlow exchanges the code and fetches the profile in one step.
func CompleteFlow(ctx context.Context, p Provider, code, verifier string) (*Profile, *Tokens, error) {
	tokens, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, nil, err
	}
	profile, err := p.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return profile, tokens, nil
}

// Registry holds the configured providers. The set is fixed at startup;
// lookups of anything else fail.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider Provider) {
	r.providers[provider.Name()] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return provider, nil
}

// List returns all registered provider names
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// httpClient returns the client used for provider calls, with the request
// timeout applied.
func httpClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// exchangeContext injects the timeout client into oauth2's exchange path.
func exchangeContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient())
}

// asExchangeError converts an oauth2 retrieve failure into an ExchangeError.
func asExchangeError(provider string, err error) error {
	if rErr, ok := err.(*oauth2.RetrieveError); ok {
		return &ExchangeError{
			Provider:    provider,
			StatusCode:  rErr.Response.StatusCode,
			ErrorCode:   rErr.ErrorCode,
			Description: rErr.ErrorDescription,
		}
	}
	return fmt.Errorf("%s token exchange: %w", provider, err)
}
