package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/favark/favark/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth scopes favark requests. Photos access is read-only; Drive access
// needs write for folder creation and uploads.
const (
	PhotosScope = "https://www.googleapis.com/auth/photoslibrary.readonly"
	DriveScope  = "https://www.googleapis.com/auth/drive"
)

const tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// OAuthConfig builds the Google [oauth2.Config] for the given scopes.
func OAuthConfig(cfg shared.GoogleConfig, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// TokenSource returns a self-refreshing token source seeded from the stored
// refresh token. Access tokens are minted on demand; nothing is persisted.
func TokenSource(ctx context.Context, cfg shared.GoogleConfig, scopes ...string) oauth2.TokenSource {
	conf := OAuthConfig(cfg, scopes...)
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
}

// Client returns an authenticated HTTP client backed by ts.
func Client(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}

// TokenScopes asks the tokeninfo endpoint which scopes an access token
// carries. The token itself is never logged; only the scope list is returned.
func TokenScopes(ctx context.Context, client *http.Client, accessToken string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	u := tokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tokeninfo returned %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var info struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo response: %w", err)
	}

	return strings.Fields(info.Scope), nil
}

// VerifyScopes mints an access token and checks that every required scope is
// present, failing the run before any partial processing happens.
func VerifyScopes(ctx context.Context, ts oauth2.TokenSource, required ...string) error {
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	scopes, err := TokenScopes(ctx, nil, tok.AccessToken)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		have[s] = true
	}
	for _, want := range required {
		if !have[want] {
			return fmt.Errorf("%w: %s (re-issue the refresh token with this scope)", shared.ErrMissingScope, want)
		}
	}
	return nil
}
