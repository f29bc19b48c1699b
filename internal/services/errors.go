package services

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// RefreshReason tells the caller what to do about a failed refresh.
type RefreshReason string

const (
	// ReasonInvalidGrant means the refresh token was revoked or expired; the user must link again.
	ReasonInvalidGrant RefreshReason = "invalid_grant"
	// ReasonTransient covers network failures, timeouts, 5xx and malformed responses.
	ReasonTransient RefreshReason = "transient"
)

// RefreshError is returned by [CredentialVault] when a refresh fails.
//
// It matches [shared.ErrRefreshFailed], and [shared.ErrInvalidGrant] when Reason is [ReasonInvalidGrant].
type RefreshError struct {
	Reason RefreshReason
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%s): %v", e.Reason, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool {
	switch target {
	case shared.ErrRefreshFailed:
		return true
	case shared.ErrInvalidGrant:
		return e.Reason == ReasonInvalidGrant
	}
	return false
}

// ProviderError is a failed call to the token endpoint. Body holds the raw response for diagnostics.
//
// StatusCode is zero when no response was received.
type ProviderError struct {
	StatusCode int
	Code       string
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("token endpoint call failed: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("token endpoint returned %d (%s)", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == shared.ErrProviderError
}

// GatewayErrorKind classifies a failed listing call.
type GatewayErrorKind string

const (
	// KindUnauthorized (401): force a refresh and retry once.
	KindUnauthorized GatewayErrorKind = "unauthorized"
	// KindForbidden (403): quota or permission; refreshing will not help.
	KindForbidden GatewayErrorKind = "forbidden"
	// KindUnknown: any other status, transport failure or timeout.
	KindUnknown GatewayErrorKind = "unknown"
)

// GatewayError is returned by [ProviderGateway] implementations.
type GatewayError struct {
	Kind       GatewayErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("provider request failed (%s): status %d", e.Kind, e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	switch target {
	case shared.ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case shared.ErrForbidden:
		return e.Kind == KindForbidden
	case shared.ErrProviderUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// classifyStatus maps a listing response status to its [GatewayErrorKind].
func classifyStatus(status int) GatewayErrorKind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	default:
		return KindUnknown
	}
}
