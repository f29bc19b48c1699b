package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential errors
	ErrNoCredential      = fmt.Errorf("no linked credential")
	ErrRefreshFailed     = fmt.Errorf("token refresh failed")
	ErrInvalidGrant      = fmt.Errorf("refresh token rejected by provider")
	ErrAuthFailed        = fmt.Errorf("authentication failed")
	ErrCredentialChanged = fmt.Errorf("credential relinked or revoked during refresh")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Provider errors
	ErrProviderError   = fmt.Errorf("provider request failed")
	ErrUnauthorized    = fmt.Errorf("provider rejected access token")
	ErrForbidden       = fmt.Errorf("provider denied access")
	ErrProviderUnknown = fmt.Errorf("unexpected provider response")

	// Storage errors
	ErrNotFound         = fmt.Errorf("not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", ErrNotFound)

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
