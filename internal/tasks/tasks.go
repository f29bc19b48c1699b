// package tasks composes the credential vault, the provider gateway and the playlist store into
// user-level operations: reading a linked library and importing provider playlists.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const defaultMaxImportItems = 5000

// TokenSource hands out access tokens for a user. Implemented by [services.CredentialVault].
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID string, provider models.Provider) (string, error)
	ForceRefresh(ctx context.Context, userID string, provider models.Provider) (string, error)
}

// PlaylistWriter persists imported playlists. Implemented by repositories.PlaylistRepository.
type PlaylistWriter interface {
	Create(ctx context.Context, userID, name string, tracks []models.TrackRef, source models.Source) (*models.Playlist, error)
}

// Library reads a user's provider library with a valid token.
//
// When the provider answers 401 for a token the vault believed valid, the token is force
// refreshed and the call retried exactly once.
type Library struct {
	tokens    TokenSource
	gateway   services.ProviderGateway
	playlists PlaylistWriter
	provider  models.Provider
	logger    *log.Logger
}

// NewLibrary creates a Library for the Google provider.
func NewLibrary(tokens TokenSource, gateway services.ProviderGateway, playlists PlaylistWriter, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Library{
		tokens:    tokens,
		gateway:   gateway,
		playlists: playlists,
		provider:  models.ProviderGoogle,
		logger:    shared.WithLogger(logger, "component", "library"),
	}
}

// ImportOpts configures [Library.Import].
type ImportOpts struct {
	Name     string // Name of the new playlist; defaults to "YouTube import <id>"
	MaxItems int    // Stop after this many tracks (default: 5000)
}

// ImportResult summarizes one imported playlist.
type ImportResult struct {
	SourceID string
	Playlist *models.Playlist
	Imported int // Tracks written to the new playlist
	Skipped  int // Items without a video id (deleted or private videos)
	Pages    int
}

// Playlists returns one page of the user's provider playlists.
func (l *Library) Playlists(ctx context.Context, userID, cursor string) (*services.PlaylistPage, error) {
	return withToken(ctx, l, userID, func(token string) (*services.PlaylistPage, error) {
		return l.gateway.ListPlaylists(ctx, token, cursor)
	})
}

// PlaylistItems returns one page of items in a provider playlist.
func (l *Library) PlaylistItems(ctx context.Context, userID, playlistID, cursor string) (*services.ItemPage, error) {
	return withToken(ctx, l, userID, func(token string) (*services.ItemPage, error) {
		return l.gateway.ListPlaylistItems(ctx, token, playlistID, cursor)
	})
}

// Import pages through a provider playlist and stores it as a new youtube-sourced playlist.
func (l *Library) Import(ctx context.Context, progress chan<- ProgressUpdate, userID, playlistID string, opts ImportOpts) (*ImportResult, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrValidation)
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = defaultMaxImportItems
	}
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = "YouTube import " + playlistID
	}

	logger := shared.WithLogger(l.logger, "user", userID, "playlist", playlistID)
	sendProgress(progress, fetchTokenUpdate(userID))

	result := &ImportResult{SourceID: playlistID}
	tracks := []models.TrackRef{}
	cursor := ""

	for {
		page, err := l.PlaylistItems(ctx, userID, playlistID, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", result.Pages+1, err)
		}
		result.Pages++

		for _, item := range page.Items {
			track, ok := trackFromItem(item)
			if !ok {
				result.Skipped++
				continue
			}
			tracks = append(tracks, track)
		}

		total := max(page.TotalResults, len(tracks))
		sendProgress(progress, fetchItemsUpdate(len(tracks), total, result.Pages))

		if page.NextCursor == "" || len(tracks) >= opts.MaxItems {
			break
		}
		cursor = page.NextCursor
	}

	if len(tracks) > opts.MaxItems {
		tracks = tracks[:opts.MaxItems]
	}

	pl, err := l.playlists.Create(ctx, userID, opts.Name, tracks, models.SourceYouTube)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported playlist: %w", err)
	}

	result.Playlist = pl
	result.Imported = len(tracks)
	sendProgress(progress, createPlaylistUpdate(pl))

	logger.Info("playlist imported", "id", pl.ID, "tracks", result.Imported, "skipped", result.Skipped, "pages", result.Pages)
	return result, nil
}

// withToken runs call with a valid token, force refreshing and retrying once on Unauthorized.
func withToken[T any](ctx context.Context, l *Library, userID string, call func(token string) (T, error)) (T, error) {
	var zero T

	token, err := l.tokens.ValidAccessToken(ctx, userID, l.provider)
	if err != nil {
		return zero, err
	}

	res, err := call(token)
	if !errors.Is(err, shared.ErrUnauthorized) {
		return res, err
	}

	l.logger.Debug("provider rejected token, forcing refresh", "user", userID)
	token, err = l.tokens.ForceRefresh(ctx, userID, l.provider)
	if err != nil {
		return zero, err
	}
	return call(token)
}

// trackFromItem converts a playlist item into a track reference. Items without a video id are skipped.
func trackFromItem(item services.Item) (models.TrackRef, bool) {
	videoID, _ := item.Extra["videoId"].(string)
	if videoID == "" {
		return models.TrackRef{}, false
	}

	artist, _ := item.Extra["channelTitle"].(string)
	return models.TrackRef{
		ID:           videoID,
		Title:        item.Title,
		Artist:       strings.TrimSuffix(artist, " - Topic"),
		ThumbnailURL: item.ThumbnailURL,
		Source:       models.SourceYouTube,
	}, true
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
