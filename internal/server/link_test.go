package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	tu "github.com/desertthunder/tapedeck/internal/testing"
)

const testSecret = "state-secret"

// newTokenEndpoint answers authorization code exchanges with body.
func newTokenEndpoint(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newLinkServer(t *testing.T, tokenURL string, store *tu.MemoryCredentialStore) (*Server, *LinkHandler) {
	t.Helper()

	config := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/auth/google/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	link := NewLinkHandler(config, store, testSecret, LinkOptions{Logger: quietLogger()})
	return New(shared.ServerConfig{}, Deps{Link: link, Logger: quietLogger()}), link
}

// stateFrom extracts the state parameter of a consent URL.
func stateFrom(t *testing.T, consentURL string) string {
	t.Helper()
	u, err := url.Parse(consentURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestLinkHandler_Start(t *testing.T) {
	s, link := newLinkServer(t, "http://unused", tu.NewMemoryCredentialStore())

	t.Run("redirects to consent", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/auth/google?userId=u1", nil)
		require.Equal(t, http.StatusFound, rec.Code)

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "accounts.example.com", loc.Host)
		assert.Equal(t, "offline", loc.Query().Get("access_type"))
		assert.Equal(t, "consent", loc.Query().Get("prompt"))

		userID, err := link.verifyState(loc.Query().Get("state"))
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})

	t.Run("requires user", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/auth/google", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLinkHandler_Callback(t *testing.T) {
	t.Run("stores new credential", func(t *testing.T) {
		tokens, _ := newTokenEndpoint(t, http.StatusOK, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3599,"token_type":"Bearer"}`)
		store := tu.NewMemoryCredentialStore()
		s, link := newLinkServer(t, tokens.URL, store)

		consent, err := link.AuthURL("u1")
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+stateFrom(t, consent), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "linked")

		cred, err := store.Get(context.Background(), "u1", models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "at-1", cred.AccessToken)
		assert.Equal(t, "rt-1", cred.RefreshToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 5*time.Second)

		select {
		case res := <-link.Results():
			require.NoError(t, res.Err)
			assert.Equal(t, "u1", res.Credential.UserID)
		default:
			t.Fatal("expected a link result")
		}
	})

	t.Run("re-link keeps refresh token", func(t *testing.T) {
		tokens, _ := newTokenEndpoint(t, http.StatusOK, `{"access_token":"at-2","expires_in":3600,"token_type":"Bearer"}`)
		store := tu.NewMemoryCredentialStore(&models.Credential{
			UserID:       "u1",
			Provider:     models.ProviderGoogle,
			AccessToken:  "old",
			RefreshToken: "rt-original",
			ExpiresAt:    time.Now().Add(-time.Hour),
		})
		s, link := newLinkServer(t, tokens.URL, store)

		consent, err := link.AuthURL("u1")
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+stateFrom(t, consent), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		cred, err := store.Get(context.Background(), "u1", models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "at-2", cred.AccessToken)
		assert.Equal(t, "rt-original", cred.RefreshToken)
	})

	t.Run("first link without refresh token", func(t *testing.T) {
		tokens, _ := newTokenEndpoint(t, http.StatusOK, `{"access_token":"at-1","token_type":"Bearer"}`)
		store := tu.NewMemoryCredentialStore()
		s, link := newLinkServer(t, tokens.URL, store)

		consent, err := link.AuthURL("u1")
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+stateFrom(t, consent), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, store.Puts())
	})

	t.Run("exchange failure", func(t *testing.T) {
		tokens, _ := newTokenEndpoint(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
		store := tu.NewMemoryCredentialStore()
		s, link := newLinkServer(t, tokens.URL, store)

		consent, err := link.AuthURL("u1")
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+stateFrom(t, consent), nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Zero(t, store.Puts())
	})

	t.Run("rejects bad state", func(t *testing.T) {
		tokens, calls := newTokenEndpoint(t, http.StatusOK, `{}`)
		s, _ := newLinkServer(t, tokens.URL, tu.NewMemoryCredentialStore())

		for _, state := range []string{"", "not-a-jwt", forgedState(t)} {
			rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "state %q", state)
		}
		assert.Zero(t, calls.Load())
	})

	t.Run("rejects expired state", func(t *testing.T) {
		tokens, calls := newTokenEndpoint(t, http.StatusOK, `{}`)
		s, link := newLinkServer(t, tokens.URL, tu.NewMemoryCredentialStore())

		link.now = func() time.Time { return time.Now().Add(-time.Hour) }
		consent, err := link.AuthURL("u1")
		require.NoError(t, err)
		link.now = time.Now

		rec := do(t, s, http.MethodGet, "/auth/google/callback?code=abc&state="+stateFrom(t, consent), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, calls.Load())
	})

	t.Run("consent denied", func(t *testing.T) {
		tokens, calls := newTokenEndpoint(t, http.StatusOK, `{}`)
		s, link := newLinkServer(t, tokens.URL, tu.NewMemoryCredentialStore())

		consent, err := link.AuthURL("u1")
		require.NoError(t, err)

		rec := do(t, s, http.MethodGet, "/auth/google/callback?error=access_denied&state="+stateFrom(t, consent), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, calls.Load())

		res := <-link.Results()
		assert.ErrorIs(t, res.Err, shared.ErrAuthFailed)
	})
}

// forgedState signs a well-formed state with the wrong key.
func forgedState(t *testing.T) string {
	t.Helper()
	other := NewLinkHandler(&oauth2.Config{}, tu.NewMemoryCredentialStore(), "other-secret", LinkOptions{Logger: quietLogger()})
	state, err := other.signState("u1")
	require.NoError(t, err)
	return state
}
