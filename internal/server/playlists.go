package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/metrics"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// PlaylistStore is the persistence surface behind the playlist endpoints.
// Implemented by repositories.PlaylistRepository.
type PlaylistStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Playlist, error)
	Get(ctx context.Context, id string) (*models.Playlist, error)
	Create(ctx context.Context, userID, name string, tracks []models.TrackRef, source models.Source) (*models.Playlist, error)
	Rename(ctx context.Context, id, name string) error
	ReplaceTracks(ctx context.Context, id string, tracks []models.TrackRef) error
	// Update applies name and tracks together, or neither.
	Update(ctx context.Context, id, name string, tracks []models.TrackRef) error
	AppendTrack(ctx context.Context, id string, track models.TrackRef) error
	RemoveTrack(ctx context.Context, id, trackID string) error
	Delete(ctx context.Context, id string) error
}

const (
	routeListPlaylists  = "GET /api/users/{userID}/playlists"
	routeCreatePlaylist = "POST /api/playlists"
	routeGetPlaylist    = "GET /api/playlists/{id}"
	routePatchPlaylist  = "PATCH /api/playlists/{id}"
	routeDeletePlaylist = "DELETE /api/playlists/{id}"
	routeExportPlaylist = "GET /api/playlists/{id}/export"
)

var exportContentTypes = map[formatter.Format]string{
	formatter.FormatCSV:      "text/csv; charset=utf-8",
	formatter.FormatMarkdown: "text/markdown; charset=utf-8",
	formatter.FormatText:     "text/plain; charset=utf-8",
	formatter.FormatJSON:     "application/json",
}

// PlaylistHandler serves playlist CRUD.
type PlaylistHandler struct {
	store   PlaylistStore
	metrics *metrics.Metrics
}

// NewPlaylistHandler creates a handler over store. m may be nil.
func NewPlaylistHandler(store PlaylistStore, m *metrics.Metrics) *PlaylistHandler {
	return &PlaylistHandler{store: store, metrics: m}
}

// Routes returns the HTTP routes this handler serves.
func (h *PlaylistHandler) Routes() []string {
	return []string{routeListPlaylists, routeCreatePlaylist, routeGetPlaylist, routePatchPlaylist, routeDeletePlaylist, routeExportPlaylist}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeListPlaylists:
		h.list(w, r)
	case routeCreatePlaylist:
		h.create(w, r)
	case routeGetPlaylist:
		h.get(w, r)
	case routePatchPlaylist:
		h.patch(w, r)
	case routeDeletePlaylist:
		h.delete(w, r)
	case routeExportPlaylist:
		h.export(w, r)
	default:
		http.NotFound(w, r)
	}
}

type playlistList struct {
	Playlists []*models.Playlist `json:"playlists"`
}

type createPlaylistRequest struct {
	UserID string            `json:"userId"`
	Name   string            `json:"name"`
	Tracks []models.TrackRef `json:"tracks"`
	Source string            `json:"source"`
}

// patchPlaylistRequest fields are applied with precedence addTrack, removeTrackId, then name/tracks.
type patchPlaylistRequest struct {
	Name          *string            `json:"name"`
	Tracks        *[]models.TrackRef `json:"tracks"`
	AddTrack      *models.TrackRef   `json:"addTrack"`
	RemoveTrackID *string            `json:"removeTrackId"`
}

func (h *PlaylistHandler) list(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.store.ListByUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistList{Playlists: playlists})
}

func (h *PlaylistHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	source, err := models.ParseSource(req.Source)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.store.Create(r.Context(), req.UserID, req.Name, req.Tracks, source)
	h.observe("create", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// export renders the playlist as a download. ?format= is csv, markdown, text (default) or json.
func (h *PlaylistHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := formatter.Render(p, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.DefaultFilename(p, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *PlaylistHandler) patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req patchPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var err error
	switch {
	case req.AddTrack != nil:
		err = h.store.AppendTrack(ctx, id, *req.AddTrack)
		h.observe("append_track", err)
	case req.RemoveTrackID != nil:
		err = h.store.RemoveTrack(ctx, id, *req.RemoveTrackID)
		h.observe("remove_track", err)
	case req.Name != nil && req.Tracks != nil:
		err = h.store.Update(ctx, id, *req.Name, *req.Tracks)
		h.observe("update", err)
	case req.Name != nil:
		err = h.store.Rename(ctx, id, *req.Name)
		h.observe("rename", err)
	case req.Tracks != nil:
		err = h.store.ReplaceTracks(ctx, id, *req.Tracks)
		h.observe("replace_tracks", err)
	default:
		err = fmt.Errorf("%w: one of addTrack, removeTrackId, name or tracks is required", shared.ErrValidation)
	}

	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlaylistHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), r.PathValue("id"))
	h.observe("delete", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlaylistHandler) observe(op string, err error) {
	switch {
	case err == nil:
		h.metrics.RecordPlaylistMutation(op, "ok")
	case errors.Is(err, shared.ErrNotFound):
		h.metrics.RecordPlaylistMutation(op, "not_found")
	case errors.Is(err, shared.ErrValidation):
		h.metrics.RecordPlaylistMutation(op, "invalid")
	default:
		h.metrics.RecordPlaylistMutation(op, "error")
	}
}
