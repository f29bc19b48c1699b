package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/tapedeck/internal/metrics"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const defaultExpiryMargin = 60 * time.Second

// VaultOptions tunes a [CredentialVault]. Zero values pick the defaults.
type VaultOptions struct {
	// ExpiryMargin is how long a cached token must still be valid to be handed out.
	ExpiryMargin time.Duration
	// RefreshTimeout bounds one shared refresh, independent of any single caller's context.
	RefreshTimeout time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Metrics
}

// CredentialVault returns valid access tokens, refreshing expired ones through a [TokenRefresher].
//
// Concurrent callers for the same (user, provider) share a single in-flight refresh. The only
// in-process state is that single-flight group; everything else lives in the [CredentialStore].
type CredentialVault struct {
	store          CredentialStore
	refresher      TokenRefresher
	flights        singleflight.Group
	margin         time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *log.Logger
	metrics        *metrics.Metrics
}

// NewCredentialVault creates a vault over store and refresher.
func NewCredentialVault(store CredentialStore, refresher TokenRefresher, opts VaultOptions) *CredentialVault {
	if opts.ExpiryMargin <= 0 {
		opts.ExpiryMargin = defaultExpiryMargin
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &CredentialVault{
		store:          store,
		refresher:      refresher,
		margin:         opts.ExpiryMargin,
		refreshTimeout: opts.RefreshTimeout,
		now:            time.Now,
		logger:         shared.WithLogger(opts.Logger, "component", "vault"),
		metrics:        opts.Metrics,
	}
}

// ValidAccessToken returns an access token good for at least the expiry margin.
//
// Fails with [shared.ErrNoCredential] when the user never linked the provider, or with a
// [*RefreshError] when the token had to be refreshed and the refresh failed. On failure the
// stored credential is left as it was.
func (v *CredentialVault) ValidAccessToken(ctx context.Context, userID string, provider models.Provider) (string, error) {
	cred, err := v.store.Get(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	if cred.ValidFor(v.now(), v.margin) {
		v.metrics.RecordTokenLookup(string(provider), metrics.TokenCached)
		return cred.AccessToken, nil
	}

	return v.refresh(ctx, userID, provider, false)
}

// ForceRefresh refreshes the token even if the stored one looks valid, e.g. after the provider answered 401.
//
// It shares the single-flight key with [CredentialVault.ValidAccessToken]. When it joins a
// flight that served the stored token without calling the provider, it starts a new flight
// so the token the caller just saw rejected is not handed back.
func (v *CredentialVault) ForceRefresh(ctx context.Context, userID string, provider models.Provider) (string, error) {
	return v.refresh(ctx, userID, provider, true)
}

// flightResult is what one shared refresh hands to every waiter.
type flightResult struct {
	token string
	// refreshed is false when the flight returned a stored token without calling the provider.
	refreshed bool
}

func (v *CredentialVault) refresh(ctx context.Context, userID string, provider models.Provider, force bool) (string, error) {
	key := models.CredentialKey(userID, provider)

	res, err := v.join(ctx, key, userID, provider, force)
	if err == nil && force && !res.refreshed {
		v.flights.Forget(key)
		res, err = v.join(ctx, key, userID, provider, true)
	}
	if err != nil {
		if ctx.Err() == nil {
			v.metrics.RecordTokenLookup(string(provider), metrics.TokenFailed)
		}
		return "", err
	}

	if res.refreshed {
		v.metrics.RecordTokenLookup(string(provider), metrics.TokenRefreshed)
	} else {
		v.metrics.RecordTokenLookup(string(provider), metrics.TokenCached)
	}
	return res.token, nil
}

// join waits on the flight for key, starting one if none is running.
func (v *CredentialVault) join(ctx context.Context, key, userID string, provider models.Provider, force bool) (flightResult, error) {
	ch := v.flights.DoChan(key, func() (any, error) {
		// The flight outlives any one waiter so the others still get its result.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.refreshTimeout)
		defer cancel()
		return v.doRefresh(fctx, userID, provider, force)
	})

	select {
	case <-ctx.Done():
		return flightResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return flightResult{}, res.Err
		}
		return res.Val.(flightResult), nil
	}
}

func (v *CredentialVault) doRefresh(ctx context.Context, userID string, provider models.Provider, force bool) (flightResult, error) {
	logger := shared.WithLogger(v.logger, "user", userID, "provider", provider)

	// Re-read inside the flight: a flight that finished just before this one started may
	// already have stored a fresh token.
	cred, err := v.store.Get(ctx, userID, provider)
	if err != nil {
		return flightResult{}, err
	}
	if !force && cred.ValidFor(v.now(), v.margin) {
		return flightResult{token: cred.AccessToken}, nil
	}

	started := time.Now()
	tok, err := v.refresher.Refresh(ctx, cred.RefreshToken)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		rerr := classifyRefreshError(err)
		v.metrics.RecordRefreshCall(string(provider), string(rerr.Reason), elapsed)
		logger.Warn("token refresh failed", "reason", rerr.Reason, "err", err)
		return flightResult{}, rerr
	}

	if tok.AccessToken == "" {
		v.metrics.RecordRefreshCall(string(provider), string(ReasonTransient), elapsed)
		return flightResult{}, &RefreshError{Reason: ReasonTransient, Err: errors.New("provider returned an empty access token")}
	}
	v.metrics.RecordRefreshCall(string(provider), "success", elapsed)

	now := v.now().UTC()
	cred.AccessToken = tok.AccessToken
	cred.ExpiresAt = now.Add(tok.ExpiresIn)
	cred.LastRefreshedAt = now

	err = v.store.UpdateAccessToken(ctx, cred)
	switch {
	case errors.Is(err, shared.ErrCredentialChanged):
		return v.afterConcurrentChange(ctx, logger, userID, provider)
	case err != nil:
		return flightResult{}, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	logger.Debug("access token refreshed", "expires_at", cred.ExpiresAt, "token", shared.RedactToken(tok.AccessToken))
	return flightResult{token: cred.AccessToken, refreshed: true}, nil
}

// afterConcurrentChange resolves a refresh whose credential was relinked or revoked while the
// provider call was in flight. The refreshed token is dropped; a relinked token is served if
// it is still valid, a revoked credential reports [shared.ErrNoCredential].
func (v *CredentialVault) afterConcurrentChange(ctx context.Context, logger *log.Logger, userID string, provider models.Provider) (flightResult, error) {
	cur, err := v.store.Get(ctx, userID, provider)
	if err != nil {
		logger.Info("credential revoked during refresh")
		return flightResult{}, err
	}
	if cur.ValidFor(v.now(), v.margin) {
		logger.Info("credential relinked during refresh")
		return flightResult{token: cur.AccessToken, refreshed: true}, nil
	}
	return flightResult{}, &RefreshError{Reason: ReasonTransient, Err: shared.ErrCredentialChanged}
}

// classifyRefreshError turns a refresher failure into a [*RefreshError]. Only an explicit
// invalid_grant from the provider means the user has to link again.
func classifyRefreshError(err error) *RefreshError {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == string(ReasonInvalidGrant) {
		return &RefreshError{Reason: ReasonInvalidGrant, Err: err}
	}
	return &RefreshError{Reason: ReasonTransient, Err: err}
}
