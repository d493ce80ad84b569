package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

const (
	facebookAuthURL  = "https://www.facebook.com/v18.0/dialog/oauth"
	facebookTokenURL = "https://graph.facebook.com/v18.0/oauth/access_token"
	facebookGraphURL = "https://graph.facebook.com/v18.0"
	facebookMeFields = "id,name,email,first_name,last_name,picture.type(large)"
)

// FacebookProvider implements the authorization code + PKCE flow against the
// Facebook Graph API. It also verifies access tokens obtained through the
// client-side SDK via the debug_token endpoint.
type FacebookProvider struct {
	cfg      *oauth2.Config
	graphURL string
}

// NewFacebookProvider creates a Facebook provider. Empty scopes default to
// email and public_profile.
func NewFacebookProvider(clientID, clientSecret, redirectURL string, scopes []string) *FacebookProvider {
	if len(scopes) == 0 {
		scopes = []string{"email", "public_profile"}
	}
	return &FacebookProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  facebookAuthURL,
				TokenURL: facebookTokenURL,
			},
		},
		graphURL: facebookGraphURL,
	}
}

// Name returns the provider identifier
func (p *FacebookProvider) Name() string {
	return "facebook"
}

// AuthorizationRequest builds the login dialog URL with new PKCE material.
func (p *FacebookProvider) AuthorizationRequest() (*AuthRequest, error) {
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

	authURL := p.cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	return &AuthRequest{
		URL:          authURL,
		State:        state,
		CodeVerifier: verifier,
		Nonce:        nonce,
	}, nil
}

// Exchange redeems the authorization code with the saved PKCE verifier.
func (p *FacebookProvider) Exchange(ctx context.Context, code, verifier string) (*Tokens, error) {
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

// FetchProfile retrieves the user's profile from the Graph /me endpoint.
func (p *FacebookProvider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	q := url.Values{}
	q.Set("fields", facebookMeFields)
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facebook profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook profile request returned status %d", resp.StatusCode)
	}

	var info struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Picture   struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode facebook profile: %w", err)
	}

	name := info.Name
	if name == "" {
		name = strings.TrimSpace(info.FirstName + " " + info.LastName)
	}
	// Facebook omits email when the user denies the permission
	if info.ID == "" || info.Email == "" {
		return nil, ErrProfileIncomplete
	}

	return &Profile{
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       name,
		AvatarURL:  info.Picture.Data.URL,
	}, nil
}

// VerifyAccessToken validates a client-obtained token against the app via
// debug_token, checks it belongs to the claimed user, then loads the profile.
func (p *FacebookProvider) VerifyAccessToken(ctx context.Context, accessToken, userID string) (*Profile, error) {
	q := url.Values{}
	q.Set("input_token", accessToken)
	q.Set("access_token", p.cfg.ClientID+"|"+p.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphURL+"/debug_token?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug_token request: %w", err)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify facebook token: %w", err)
	}
	defer resp.Body.Close()

	var debug struct {
		Data struct {
			AppID   string `json:"app_id"`
			IsValid bool   `json:"is_valid"`
			UserID  string `json:"user_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&debug); err != nil {
		return nil, fmt.Errorf("failed to decode debug_token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !debug.Data.IsValid {
		return nil, &ExchangeError{
			Provider:    p.Name(),
			StatusCode:  resp.StatusCode,
			ErrorCode:   "invalid_token",
			Description: "token is not valid for this application",
		}
	}
	if debug.Data.AppID != p.cfg.ClientID {
		return nil, &ExchangeError{
			Provider:    p.Name(),
			StatusCode:  resp.StatusCode,
			ErrorCode:   "app_mismatch",
			Description: "token was issued for a different application",
		}
	}
	if userID != "" && debug.Data.UserID != userID {
		return nil, &ExchangeError{
			Provider:    p.Name(),
			StatusCode:  resp.StatusCode,
			ErrorCode:   "user_mismatch",
			Description: "token does not belong to the claimed user",
		}
	}

	return p.FetchProfile(ctx, accessToken)
}

var _ TokenVerifier = (*FacebookProvider)(nil)
