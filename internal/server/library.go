package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// LibraryReader reads a user's provider library. Implemented by [tasks.Library].
type LibraryReader interface {
	Playlists(ctx context.Context, userID, cursor string) (*services.PlaylistPage, error)
	PlaylistItems(ctx context.Context, userID, playlistID, cursor string) (*services.ItemPage, error)
	Import(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID, playlistID string, opts tasks.ImportOpts) (*tasks.ImportResult, error)
}

const (
	routeProviderPlaylists = "GET /api/users/{userID}/youtube/playlists"
	routeProviderItems     = "GET /api/users/{userID}/youtube/playlists/{playlistID}/items"
	routeProviderImport    = "POST /api/users/{userID}/youtube/playlists/{playlistID}/import"
)

// LibraryHandler proxies paged provider listings and imports provider playlists.
type LibraryHandler struct {
	library LibraryReader
}

// NewLibraryHandler creates a handler over library.
func NewLibraryHandler(library LibraryReader) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// Routes returns the HTTP routes this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{routeProviderPlaylists, routeProviderItems, routeProviderImport}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeProviderPlaylists:
		h.playlists(w, r)
	case routeProviderItems:
		h.items(w, r)
	case routeProviderImport:
		h.importPlaylist(w, r)
	default:
		http.NotFound(w, r)
	}
}

type importRequest struct {
	Name     string `json:"name"`
	MaxItems int    `json:"maxItems"`
}

type importResponse struct {
	Playlist any `json:"playlist"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Pages    int `json:"pages"`
}

func (h *LibraryHandler) playlists(w http.ResponseWriter, r *http.Request) {
	page, err := h.library.Playlists(r.Context(), r.PathValue("userID"), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *LibraryHandler) items(w http.ResponseWriter, r *http.Request) {
	page, err := h.library.PlaylistItems(r.Context(), r.PathValue("userID"), r.PathValue("playlistID"), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// importPlaylist accepts an optional JSON body; name and maxItems may also be passed as query parameters.
func (h *LibraryHandler) importPlaylist(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if name := r.URL.Query().Get("name"); name != "" {
		req.Name = name
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("maxItems")); err == nil {
		req.MaxItems = n
	}

	res, err := h.library.Import(r.Context(), nil, r.PathValue("userID"), r.PathValue("playlistID"), tasks.ImportOpts{
		Name:     req.Name,
		MaxItems: req.MaxItems,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, importResponse{
		Playlist: res.Playlist,
		Imported: res.Imported,
		Skipped:  res.Skipped,
		Pages:    res.Pages,
	})
}
