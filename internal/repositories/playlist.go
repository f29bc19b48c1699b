package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

type playlistQueries struct {
	list          string
	get           string
	insert        string
	rename        string
	replaceTracks string
	update        string
	appendTrack   string
	removeTrack   string
	delete        string
}

const playlistColumns = `id, user_id, name, tracks, source, created_at, updated_at`

// Every mutation sets updated_at to max(now, previous+1) so it strictly increases even when
// two writes land within the same clock tick.
var playlistSQL = map[Dialect]playlistQueries{
	DialectSQLite: {
		list: `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? ORDER BY updated_at DESC, id ASC`,
		get:  `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`,
		insert: `
			INSERT INTO playlists (id, user_id, name, tracks, source, created_at, updated_at)
			VALUES (?, ?, ?, json(?), ?, ?, ?)`,
		rename: `
			UPDATE playlists
			SET name = ?, updated_at = MAX(?, updated_at + 1)
			WHERE id = ?`,
		replaceTracks: `
			UPDATE playlists
			SET tracks = json(?), updated_at = MAX(?, updated_at + 1)
			WHERE id = ?`,
		update: `
			UPDATE playlists
			SET name = ?, tracks = json(?), updated_at = MAX(?, updated_at + 1)
			WHERE id = ?`,
		appendTrack: `
			UPDATE playlists
			SET tracks = json_insert(tracks, '$[#]', json(?)), updated_at = MAX(?, updated_at + 1)
			WHERE id = ?`,
		removeTrack: `
			UPDATE playlists
			SET tracks = (
				SELECT json_group_array(json(t.value))
				FROM (
					SELECT value FROM json_each(playlists.tracks)
					WHERE json_extract(value, '$.id') IS NOT ?
					ORDER BY key
				) AS t
			), updated_at = MAX(?, updated_at + 1)
			WHERE id = ?`,
		delete: `DELETE FROM playlists WHERE id = ?`,
	},
	DialectPostgres: {
		list: `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = $1 ORDER BY updated_at DESC, id ASC`,
		get:  `SELECT ` + playlistColumns + ` FROM playlists WHERE id = $1`,
		insert: `
			INSERT INTO playlists (id, user_id, name, tracks, source, created_at, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`,
		rename: `
			UPDATE playlists
			SET name = $1, updated_at = GREATEST($2, updated_at + 1)
			WHERE id = $3`,
		replaceTracks: `
			UPDATE playlists
			SET tracks = $1::jsonb, updated_at = GREATEST($2, updated_at + 1)
			WHERE id = $3`,
		update: `
			UPDATE playlists
			SET name = $1, tracks = $2::jsonb, updated_at = GREATEST($3, updated_at + 1)
			WHERE id = $4`,
		appendTrack: `
			UPDATE playlists
			SET tracks = tracks || jsonb_build_array($1::jsonb), updated_at = GREATEST($2, updated_at + 1)
			WHERE id = $3`,
		removeTrack: `
			UPDATE playlists
			SET tracks = COALESCE((
				SELECT jsonb_agg(t.elem ORDER BY t.ord)
				FROM jsonb_array_elements(playlists.tracks) WITH ORDINALITY AS t(elem, ord)
				WHERE t.elem->>'id' IS DISTINCT FROM $1
			), '[]'::jsonb), updated_at = GREATEST($2, updated_at + 1)
			WHERE id = $3`,
		delete: `DELETE FROM playlists WHERE id = $1`,
	},
}

// PlaylistRepository persists [models.Playlist] documents.
//
// Track mutations are single UPDATE statements over the JSON tracks column, so concurrent
// appends and removals on the same playlist never lose each other's writes.
type PlaylistRepository struct {
	db  *sql.DB
	q   playlistQueries
	now func() time.Time
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB, dialect Dialect) *PlaylistRepository {
	q, ok := playlistSQL[dialect]
	if !ok {
		q = playlistSQL[DialectSQLite]
	}
	return &PlaylistRepository{db: db, q: q, now: time.Now}
}

// ListByUser returns the user's playlists, most recently updated first.
//
// A user without playlists gets an empty, non-nil slice.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]*models.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []*models.Playlist{}
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// Get retrieves a playlist by ID or fails with [shared.ErrPlaylistNotFound].
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	p, err := r.scan(r.db.QueryRowContext(ctx, r.q.get, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return p, err
}

// Create inserts a new playlist with a generated ID.
//
// Nil tracks become an empty sequence and a blank source becomes [models.DefaultSource].
// An unknown source fails with [shared.ErrValidation].
func (r *PlaylistRepository) Create(ctx context.Context, userID, name string, tracks []models.TrackRef, source models.Source) (*models.Playlist, error) {
	source, err := models.ParseSource(string(source))
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []models.TrackRef{}
	}

	now := r.now().UTC()
	p := &models.Playlist{
		ID:        shared.GenerateID(),
		UserID:    strings.TrimSpace(userID),
		Name:      strings.TrimSpace(name),
		Tracks:    tracks,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(p.Tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tracks: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.q.insert,
		p.ID,
		p.UserID,
		p.Name,
		string(data),
		string(p.Source),
		toNanos(p.CreatedAt),
		toNanos(p.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}

	return p, nil
}

// Rename sets the playlist name.
func (r *PlaylistRepository) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrValidation)
	}
	return r.mutate(ctx, id, r.q.rename, name)
}

// ReplaceTracks overwrites the whole track sequence.
func (r *PlaylistRepository) ReplaceTracks(ctx context.Context, id string, tracks []models.TrackRef) error {
	if tracks == nil {
		tracks = []models.TrackRef{}
	}
	if err := models.ValidateTracks(tracks); err != nil {
		return err
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to encode tracks: %w", err)
	}
	return r.mutate(ctx, id, r.q.replaceTracks, string(data))
}

// Update sets the name and replaces the track sequence in one statement. Nothing is written
// unless both are valid.
func (r *PlaylistRepository) Update(ctx context.Context, id, name string, tracks []models.TrackRef) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrValidation)
	}
	if tracks == nil {
		tracks = []models.TrackRef{}
	}
	if err := models.ValidateTracks(tracks); err != nil {
		return err
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to encode tracks: %w", err)
	}
	return r.mutate(ctx, id, r.q.update, name, string(data))
}

// AppendTrack pushes track onto the end of the sequence in one statement.
func (r *PlaylistRepository) AppendTrack(ctx context.Context, id string, track models.TrackRef) error {
	if err := track.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}
	return r.mutate(ctx, id, r.q.appendTrack, string(data))
}

// RemoveTrack drops every track whose id equals trackID. Removing an absent id leaves the
// sequence unchanged but still bumps UpdatedAt.
func (r *PlaylistRepository) RemoveTrack(ctx context.Context, id, trackID string) error {
	if strings.TrimSpace(trackID) == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrValidation)
	}
	return r.mutate(ctx, id, r.q.removeTrack, trackID)
}

// Delete permanently removes a playlist. Deleting a missing playlist is not an error.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.q.delete, id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return nil
}

// mutate runs an UPDATE whose placeholders are (values..., now, id).
func (r *PlaylistRepository) mutate(ctx context.Context, id, query string, values ...any) error {
	args := append(values, toNanos(r.now().UTC()), id)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PlaylistRepository) scan(row scanner) (*models.Playlist, error) {
	var (
		p                    models.Playlist
		tracks               []byte
		source               string
		createdAt, updatedAt int64
	)

	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &tracks, &source, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Tracks = []models.TrackRef{}
	if len(tracks) > 0 {
		if err := json.Unmarshal(tracks, &p.Tracks); err != nil {
			return nil, fmt.Errorf("failed to decode tracks for playlist %s: %w", p.ID, err)
		}
	}

	p.Source = models.Source(source)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}
