package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Credential is the stored OAuth token pair for one (UserID, Provider) link.
//
// RefreshToken only changes when the user links the account again. AccessToken and ExpiresAt are
// replaced together on every refresh.
type Credential struct {
	UserID          string
	Provider        Provider
	AccessToken     string
	RefreshToken    string
	ExpiresAt       time.Time
	LastRefreshedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the identity used to deduplicate concurrent refreshes of this credential.
func (c *Credential) Key() string {
	return CredentialKey(c.UserID, c.Provider)
}

// CredentialKey formats the (user, provider) identity as "provider:user".
func CredentialKey(userID string, provider Provider) string {
	return string(provider) + ":" + userID
}

// ValidFor reports whether the access token is still usable for at least margin after now.
func (c *Credential) ValidFor(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt.After(now.Add(margin))
}

func (c *Credential) Validate() error {
	var missing []string
	if strings.TrimSpace(c.UserID) == "" {
		missing = append(missing, "user id")
	}
	if c.Provider == "" {
		missing = append(missing, "provider")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh token")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: credential missing %s", shared.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
