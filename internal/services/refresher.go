package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/tapedeck/internal/shared"
)

const (
	defaultExpiresIn      = time.Hour
	defaultRefreshTimeout = 10 * time.Second
)

// GoogleTokenRefresher refreshes Google OAuth access tokens with the client identity read from config at startup.
type GoogleTokenRefresher struct {
	config           *oauth2.Config
	httpClient       *http.Client
	defaultExpiresIn time.Duration
	now              func() time.Time
}

// NewGoogleTokenRefresher builds a refresher posting client credentials in the form body.
//
// httpClient may be nil; a client bounded by cfg.Timeout is used then.
func NewGoogleTokenRefresher(cfg shared.OAuthConfig, defaultExpiry time.Duration, httpClient *http.Client) *GoogleTokenRefresher {
	if defaultExpiry <= 0 {
		defaultExpiry = defaultExpiresIn
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRefreshTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &GoogleTokenRefresher{
		config:           NewOAuthConfig(cfg),
		httpClient:       httpClient,
		defaultExpiresIn: defaultExpiry,
		now:              time.Now,
	}
}

// NewOAuthConfig converts config into an [oauth2.Config] for the Google endpoints.
func NewOAuthConfig(cfg shared.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Refresh posts grant_type=refresh_token to the token endpoint once.
//
// Any failure is returned as a [*ProviderError]; nothing is retried here.
func (r *GoogleTokenRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, toProviderError(err)
	}

	expiresIn := r.defaultExpiresIn
	if !tok.Expiry.IsZero() {
		expiresIn = tok.Expiry.Sub(r.now()).Round(time.Second)
	}

	return &RefreshedToken{AccessToken: tok.AccessToken, ExpiresIn: expiresIn}, nil
}

func toProviderError(err error) *ProviderError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		pe := &ProviderError{Code: re.ErrorCode, Body: string(re.Body), Err: err}
		if re.Response != nil {
			pe.StatusCode = re.Response.StatusCode
		}
		return pe
	}
	return &ProviderError{Err: err}
}
