// Package services implements the credential lifecycle and the provider listing client.
//
// # Credential Vault
//
// [CredentialVault] answers "give me a valid access token now" for a (user, provider) pair.
// Tokens valid for longer than the expiry margin are served from the [CredentialStore] without
// a network call. Expired tokens are refreshed through a [TokenRefresher] inside a
// [singleflight.Group] keyed by "provider:user", so N concurrent callers cause one refresh.
//
// The refresh runs on a context detached from the caller that started it and bounded by the
// refresh timeout. A caller whose own context ends returns early; the others still receive
// the shared result.
//
// # Token Refresher
//
// [GoogleTokenRefresher] posts the refresh grant with [oauth2.AuthStyleInParams] and reports any
// failure as a [*ProviderError] carrying the raw response body.
//
// # YouTube Gateway
//
// [YouTubeGateway] reads one page of playlists or playlist items per call and normalizes them to [Item].
//
// # Error Handling
//
// Failures are typed and match the sentinels in the shared package:
//   - [*RefreshError] : [shared.ErrRefreshFailed], plus [shared.ErrInvalidGrant] when the user must link again
//   - [*ProviderError] : [shared.ErrProviderError]
//   - [*GatewayError] : [shared.ErrUnauthorized] (401), [shared.ErrForbidden] (403), [shared.ErrProviderUnknown]
//
// Nothing in this package retries on its own.
package services
