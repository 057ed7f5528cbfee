package strava

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

	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/credentials"
	"github.com/stridedash/stridedash/pkg/logger"
	"github.com/stridedash/stridedash/pkg/metrics"
)

const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/oauth/token"

	// RefreshMargin is the safety window before expiry inside which a
	// credential is refreshed ahead of use.
	RefreshMargin = 5 * time.Minute
)

// Authenticator owns the OAuth2 credential lifecycle against Strava:
// building the consent URL, exchanging the authorization code, refreshing
// the access token and persisting the result.
type Authenticator struct {
	cfg    config.StravaConfig
	store  credentials.Store
	client *http.Client
}

func NewAuthenticator(cfg config.StravaConfig, store credentials.Store) *Authenticator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.strava.com"
	}
	return &Authenticator{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthorizationURL builds the interactive consent URL the user must visit in
// a browser.
func (a *Authenticator) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("redirect_uri", a.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "activity:read_all")
	return a.cfg.BaseURL + authorizePath + "?" + q.Encode()
}

// Authorize completes the interactive flow: it accepts the full redirect URL
// the browser landed on after consent, extracts the authorization code and
// exchanges it for a persisted credential.
func (a *Authenticator) Authorize(ctx context.Context, redirectURL string) (*credentials.Credential, error) {
	code, err := codeFromRedirect(redirectURL)
	if err != nil {
		return nil, &AuthError{Op: "authorize", Err: err}
	}
	return a.Exchange(ctx, code)
}

func codeFromRedirect(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if denial := u.Query().Get("error"); denial != "" {
		return "", fmt.Errorf("authorization denied: %s", denial)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("redirect URL carries no authorization code")
	}
	return code, nil
}

// Exchange trades an authorization code for a credential and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*credentials.Credential, error) {
	if code == "" {
		return nil, &AuthError{Op: "exchange", Err: errors.New("authorization code is empty")}
	}
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	logger.Debugf("exchanging authorization code (length=%d)", len(code))
	cred, err := a.requestToken(ctx, "exchange", form)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	return cred, nil
}

// Refresh exchanges the refresh token for a new credential when expiry falls
// within RefreshMargin. A still-fresh credential is returned unchanged, which
// makes Refresh idempotent and cheap to call before every fetch.
func (a *Authenticator) Refresh(ctx context.Context, cred *credentials.Credential) (*credentials.Credential, error) {
	if cred == nil {
		return nil, &AuthError{Op: "refresh", Err: errors.New("no credential to refresh")}
	}
	if !cred.Stale(RefreshMargin) {
		return cred, nil
	}
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	logger.Debugf("refreshing access token expiring at %s", cred.ExpiryTime().Format(time.RFC3339))
	next, err := a.requestToken(ctx, "refresh", form)
	if err != nil {
		return nil, err
	}
	metrics.TokenRefreshes.Inc()
	if err := a.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	return next, nil
}

// Load returns the persisted credential, or credentials.ErrNotFound when the
// user never authorized.
func (a *Authenticator) Load(ctx context.Context) (*credentials.Credential, error) {
	return a.store.Load(ctx)
}

func (a *Authenticator) requestToken(ctx context.Context, op string, form url.Values) (*credentials.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &AuthError{Op: op, Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &AuthError{Op: op, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Op: op, Err: errors.New("token response carries no access token")}
	}
	return &credentials.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
	}, nil
}
