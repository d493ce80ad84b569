package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleProvider implements the authorization code + PKCE flow against
// Google's OAuth2 endpoints.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userinfoURL string
}

// NewGoogleProvider creates a Google provider. Empty scopes default to
// profile and email.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, scopes []string) *GoogleProvider {
	if len(scopes) == 0 {
		scopes = []string{"profile", "email"}
	}
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		userinfoURL: googleUserinfoURL,
	}
}

// Name returns the provider identifier
func (p *GoogleProvider) Name() string {
	return "google"
}

// AuthorizationRequest builds the consent URL. Google gets offline access
// with a forced consent prompt so a refresh token is always issued.
func (p *GoogleProvider) AuthorizationRequest() (*AuthRequest, error) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	url := p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	return &AuthRequest{
		URL:          url,
		State:        state,
		CodeVerifier: verifier,
		Nonce:        nonce,
	}, nil
}

// Exchange redeems the authorization code with the saved PKCE verifier.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*Tokens, error) {
	token, err := p.cfg.Exchange(exchangeContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, asExchangeError(p.Name(), err)
	}
	return &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// FetchProfile retrieves the user's profile from the userinfo endpoint.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode google userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, ErrProfileIncomplete
	}

	return &Profile{
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       info.Name,
		AvatarURL:  info.Picture,
	}, nil
}
