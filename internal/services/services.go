package services

import (
	"context"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
)

// CredentialStore is the persistence contract the vault needs.
type CredentialStore interface {
	Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error)
	Put(ctx context.Context, cred *models.Credential) error
	// UpdateAccessToken stores a refreshed token only while the row still holds cred.RefreshToken.
	// It fails with [shared.ErrCredentialChanged] otherwise.
	UpdateAccessToken(ctx context.Context, cred *models.Credential) error
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	// Refresh performs exactly one call to the provider's token endpoint.
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)
}

// ProviderGateway reads a user's library from an external provider one page at a time.
type ProviderGateway interface {
	// ListPlaylists returns one page of the token owner's playlists. An empty cursor starts from the beginning.
	ListPlaylists(ctx context.Context, accessToken, cursor string) (*PlaylistPage, error)

	// ListPlaylistItems returns one page of items in playlistID.
	ListPlaylistItems(ctx context.Context, accessToken, playlistID, cursor string) (*ItemPage, error)
}

// RefreshedToken is the result of a successful refresh.
type RefreshedToken struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Item is the provider-neutral shape of a playlist or playlist item.
//
// Extra carries fields that only make sense for one kind (itemCount, privacyStatus, videoId, position).
type Item struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	PublishedAt  string         `json:"publishedAt,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// PlaylistPage is one page of playlists. NextCursor is empty on the last page.
type PlaylistPage struct {
	Playlists    []Item `json:"playlists"`
	NextCursor   string `json:"nextCursor,omitempty"`
	TotalResults int    `json:"totalResults"`
}

// ItemPage is one page of playlist items. NextCursor is empty on the last page.
type ItemPage struct {
	Items        []Item `json:"items"`
	NextCursor   string `json:"nextCursor,omitempty"`
	TotalResults int    `json:"totalResults"`
}
