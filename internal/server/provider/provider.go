// Package provider talks to Google's OAuth2 endpoints: consent URL, code
// exchange, refresh, token-info probe, userinfo email lookup and revocation.
//
// A Google value is immutable after construction. Every call carries its own
// token, so concurrent requests never share credentials.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"golang.org/x/oauth2"
)

const (
	ScopeDrive     = "https://www.googleapis.com/auth/drive"
	ScopeUserEmail = "https://www.googleapis.com/auth/userinfo.email"
)

// Endpoint is Google's OAuth2 endpoint with client credentials sent in the body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Options configures a Google provider. Zero endpoint fields fall back to
// Google's production URLs.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	TokenInfoURL string
	UserInfoURL  string
	RevokeURL    string
	HTTPClient   *http.Client
}

// TokenInfo is the subset of the token-info response the gateway uses.
type TokenInfo struct {
	Email     string
	Scope     string
	ExpiresIn time.Duration
}

// Google implements the OAuth2 calls against Google's endpoints.
type Google struct {
	oauth        oauth2.Config
	httpClient   *http.Client
	tokenInfoURL string
	userInfoURL  string
	revokeURL    string
}

func NewGoogle(opts Options) *Google {
	ep := opts.Endpoint
	if ep.AuthURL == "" && ep.TokenURL == "" {
		ep = Endpoint
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Google{
		oauth: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{ScopeDrive, ScopeUserEmail},
		},
		httpClient:   hc,
		tokenInfoURL: orDefault(opts.TokenInfoURL, "https://oauth2.googleapis.com/tokeninfo"),
		userInfoURL:  orDefault(opts.UserInfoURL, "https://openidconnect.googleapis.com/v1/userinfo"),
		revokeURL:    orDefault(opts.RevokeURL, "https://oauth2.googleapis.com/revoke"),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// withClient makes x/oauth2 use the configured HTTP client.
func (g *Google) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// AuthURL returns the consent URL. Offline access with prompt=consent makes
// Google return a refresh token on every exchange; state is passed verbatim.
func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token pair. A response without
// a refresh token is a failure: the link could never be refreshed.
func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.oauth.Exchange(g.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrExchangeFailed, err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token in response", common.ErrExchangeFailed)
	}
	return tok, nil
}

// Refresh mints a new access token from refreshToken.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := g.oauth.TokenSource(g.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRefreshFailed, err)
	}
	return tok, nil
}

type tokenInfoResponse struct {
	Email     string      `json:"email"`
	Scope     string      `json:"scope"`
	ExpiresIn json.Number `json:"expires_in"`
}

// TokenInfo probes the token-info endpoint. Any non-200 answer means the
// token is not live.
func (g *Google) TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error) {
	u := g.tokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token info status: %s", resp.Status)
	}

	var body tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token info: %w", err)
	}

	info := &TokenInfo{Email: body.Email, Scope: body.Scope}
	if body.ExpiresIn != "" {
		secs, err := body.ExpiresIn.Int64()
		if err != nil {
			return nil, fmt.Errorf("decode token info: expires_in: %w", err)
		}
		info.ExpiresIn = time.Duration(secs) * time.Second
	}
	if info.ExpiresIn <= 0 {
		return nil, errors.New("token info: token has no remaining lifetime")
	}
	return info, nil
}

// AccountEmail resolves the email of the account that owns accessToken.
func (g *Google) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: user info request: %w", common.ErrEmailUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: user info status: %s", common.ErrEmailUnavailable, resp.Status)
	}

	var tmp struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tmp); err != nil {
		return "", fmt.Errorf("%w: decode user info: %w", common.ErrEmailUnavailable, err)
	}
	if tmp.Email == "" {
		return "", common.ErrEmailUnavailable
	}
	return tmp.Email, nil
}

// Revoke invalidates token. Google answers 400 for a token that is already
// revoked or was never valid; that is reported as common.ErrAlreadyRevoked.
func (g *Google) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: revoke request: %w", common.ErrUpstream, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return common.ErrAlreadyRevoked
	default:
		return fmt.Errorf("%w: revoke status: %s", common.ErrUpstream, resp.Status)
	}
}

// Client returns an HTTP client that authorizes requests with accessToken.
// It never refreshes: an expired token fails and the caller validates again.
func (g *Google) Client(ctx context.Context, accessToken string) *http.Client {
	return oauth2.NewClient(g.withClient(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}
