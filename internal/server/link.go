package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const (
	stateIssuer = "tapedeck"
	stateTTL    = 10 * time.Minute

	routeLinkStart    = "GET /auth/google"
	routeLinkCallback = "GET /auth/google/callback"
)

// LinkResult is the outcome of one completed callback.
type LinkResult struct {
	Credential *models.Credential
	Err        error
}

// LinkOptions configures a [LinkHandler].
type LinkOptions struct {
	HTTPClient       *http.Client  // Client used for the code exchange
	DefaultExpiresIn time.Duration // Access token lifetime when the provider omits expires_in
	Logger           *log.Logger
}

// LinkHandler runs the OAuth2 authorization code flow that links a Google account to a user
// and stores the initial credential.
//
// The state parameter is an HS256 JWT whose subject is the user id, so no server-side session
// is needed between the redirect and the callback. Re-linking keeps the stored refresh token
// when Google does not issue a new one.
type LinkHandler struct {
	config        *oauth2.Config
	store         services.CredentialStore
	secret        []byte
	httpClient    *http.Client
	defaultExpiry time.Duration
	logger        *log.Logger
	now           func() time.Time
	results       chan LinkResult
}

// NewLinkHandler creates a link handler signing state tokens with secret.
func NewLinkHandler(config *oauth2.Config, store services.CredentialStore, secret string, opts LinkOptions) *LinkHandler {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.DefaultExpiresIn <= 0 {
		opts.DefaultExpiresIn = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &LinkHandler{
		config:        config,
		store:         store,
		secret:        []byte(secret),
		httpClient:    opts.HTTPClient,
		defaultExpiry: opts.DefaultExpiresIn,
		logger:        shared.WithLogger(opts.Logger, "component", "link"),
		now:           time.Now,
		results:       make(chan LinkResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *LinkHandler) Routes() []string {
	return []string{routeLinkStart, routeLinkCallback}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *LinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeLinkStart:
		h.start(w, r)
	case routeLinkCallback:
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// AuthURL returns the provider consent URL for userID with a freshly signed state.
func (h *LinkHandler) AuthURL(userID string) (string, error) {
	state, err := h.signState(userID)
	if err != nil {
		return "", err
	}
	return h.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// Results delivers completed callbacks. Results are dropped when nobody is reading.
func (h *LinkHandler) Results() <-chan LinkResult {
	return h.results
}

func (h *LinkHandler) start(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, fmt.Errorf("%w: userId is required", shared.ErrMissingArgument))
		return
	}

	url, err := h.AuthURL(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *LinkHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, err := h.verifyState(q.Get("state"))
	if err != nil {
		h.send(LinkResult{Err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.send(LinkResult{Err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	cred, err := h.link(r.Context(), userID, code)
	h.send(LinkResult{Credential: cred, Err: err})
	if err != nil {
		h.logger.Error("link failed", "user", userID, "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, shared.ErrAuthFailed) {
			status = http.StatusBadRequest
		}
		http.Error(w, "Linking failed", status)
		return
	}

	h.logger.Info("account linked", "user", userID, "expires_at", cred.ExpiresAt)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// link exchanges code and stores the credential.
func (h *LinkHandler) link(ctx context.Context, userID, code string) (*models.Credential, error) {
	tok, err := h.config.Exchange(context.WithValue(ctx, oauth2.HTTPClient, h.httpClient), code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	existing, err := h.store.Get(ctx, userID, models.ProviderGoogle)
	if err != nil && !errors.Is(err, shared.ErrNoCredential) {
		return nil, err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" && existing != nil {
		refreshToken = existing.RefreshToken
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: provider returned no refresh token", shared.ErrAuthFailed)
	}

	now := h.now().UTC()
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = now.Add(h.defaultExpiry)
	}

	cred := &models.Credential{
		UserID:          userID,
		Provider:        models.ProviderGoogle,
		AccessToken:     tok.AccessToken,
		RefreshToken:    refreshToken,
		ExpiresAt:       expiresAt.UTC(),
		LastRefreshedAt: now,
	}
	if existing != nil {
		cred.CreatedAt = existing.CreatedAt
	}

	if err := h.store.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	return cred, nil
}

func (h *LinkHandler) signState(userID string) (string, error) {
	now := h.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		Subject:   userID,
		ID:        shared.GenerateID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}

	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return state, nil
}

// verifyState returns the user id carried by a valid, unexpired state token.
func (h *LinkHandler) verifyState(state string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("%w: missing state", shared.ErrAuthFailed)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(*jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: invalid state: %v", shared.ErrAuthFailed, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: state has no subject", shared.ErrAuthFailed)
	}
	return claims.Subject, nil
}

func (h *LinkHandler) send(result LinkResult) {
	select {
	case h.results <- result:
	default:
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Account Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #FF0033; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ YouTube account linked</h1>
        <p>You can close this window.</p>
    </div>
</body>
</html>
`
