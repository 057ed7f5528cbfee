package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/credentials"
)

// fakeTokenServer answers /oauth/token the way Strava does and counts the
// exchanges it sees per grant type.
type fakeTokenServer struct {
	srv           *httptest.Server
	exchangeCalls int64
	refreshCalls  int64
}

func newFakeTokenServer(t *testing.T) *fakeTokenServer {
	t.Helper()
	f := &fakeTokenServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			atomic.AddInt64(&f.exchangeCalls, 1)
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Bad Request"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
			})
		case "refresh_token":
			atomic.AddInt64(&f.refreshCalls, 1)
			if r.Form.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Authorization Error"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-2",
				"refresh_token": "refresh-2",
				"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func testAuthenticator(baseURL string, store credentials.Store) *Authenticator {
	return NewAuthenticator(config.StravaConfig{
		ClientID:     "62161",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:8090/auth/callback",
		BaseURL:      baseURL,
	}, store)
}

func TestAuthorizationURL(t *testing.T) {
	auth := testAuthenticator("https://www.strava.com", credentials.NewMemoryStore())
	u := auth.AuthorizationURL()
	require.Contains(t, u, "https://www.strava.com/oauth/authorize?")
	require.Contains(t, u, "client_id=62161")
	require.Contains(t, u, "response_type=code")
	require.Contains(t, u, "scope=activity%3Aread_all")
	require.Contains(t, u, "redirect_uri=")
}

func TestAuthorizePersistsCredential(t *testing.T) {
	f := newFakeTokenServer(t)
	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "strava_tokens.json"))
	auth := testAuthenticator(f.srv.URL, store)

	cred, err := auth.Authorize(context.Background(), "http://localhost:8090/auth/callback?state=&code=good-code&scope=activity:read_all")
	require.NoError(t, err)
	require.Equal(t, "access-1", cred.AccessToken)
	require.Equal(t, "refresh-1", cred.RefreshToken)

	// authorize -> persist -> load reproduces the same fields
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, cred, loaded)
}

func TestAuthorizeMissingCode(t *testing.T) {
	auth := testAuthenticator("http://unused", credentials.NewMemoryStore())
	_, err := auth.Authorize(context.Background(), "http://localhost:8090/auth/callback?scope=read")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAuthorizeDenied(t *testing.T) {
	auth := testAuthenticator("http://unused", credentials.NewMemoryStore())
	_, err := auth.Authorize(context.Background(), "http://localhost:8090/auth/callback?error=access_denied")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Contains(t, err.Error(), "access_denied")
}

func TestExchangeRejectedCode(t *testing.T) {
	f := newFakeTokenServer(t)
	auth := testAuthenticator(f.srv.URL, credentials.NewMemoryStore())

	_, err := auth.Exchange(context.Background(), "expired-code")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestRefreshFreshCredentialIsIdempotent(t *testing.T) {
	f := newFakeTokenServer(t)
	store := credentials.NewMemoryStore()
	auth := testAuthenticator(f.srv.URL, store)

	cred := &credentials.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
	got, err := auth.Refresh(context.Background(), cred)
	require.NoError(t, err)
	require.Same(t, cred, got)
	require.EqualValues(t, 0, atomic.LoadInt64(&f.refreshCalls))
}

func TestRefreshExpiredCredential(t *testing.T) {
	f := newFakeTokenServer(t)
	store := credentials.NewMemoryStore()
	auth := testAuthenticator(f.srv.URL, store)

	cred := &credentials.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}
	got, err := auth.Refresh(context.Background(), cred)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
	require.Equal(t, "refresh-2", got.RefreshToken)
	require.EqualValues(t, 1, atomic.LoadInt64(&f.refreshCalls))

	// the new credential replaced the persisted one
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, got, loaded)
}

func TestRefreshInsideSafetyMargin(t *testing.T) {
	f := newFakeTokenServer(t)
	auth := testAuthenticator(f.srv.URL, credentials.NewMemoryStore())

	// not yet expired, but within the 5 minute margin
	cred := &credentials.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute).Unix(),
	}
	got, err := auth.Refresh(context.Background(), cred)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
}

func TestRefreshRevokedGrant(t *testing.T) {
	f := newFakeTokenServer(t)
	auth := testAuthenticator(f.srv.URL, credentials.NewMemoryStore())

	cred := &credentials.Credential{
		AccessToken:  "access-1",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}
	_, err := auth.Refresh(context.Background(), cred)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
