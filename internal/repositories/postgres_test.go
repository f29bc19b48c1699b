package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

func newPostgresMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresPlaylistRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("AppendTrack uses jsonb concatenation", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(regexp.QuoteMeta(`SET tracks = tracks || jsonb_build_array($1::jsonb), updated_at = GREATEST($2, updated_at + 1)`)).
			WithArgs(`{"id":"v1","title":"Song"}`, now.UnixNano(), "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.AppendTrack(ctx, "p1", models.TrackRef{ID: "v1", Title: "Song"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("RemoveTrack filters with ordinality", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(`(?s)jsonb_agg\(t\.elem ORDER BY t\.ord\).*IS DISTINCT FROM \$1`).
			WithArgs("v1", now.UnixNano(), "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.RemoveTrack(ctx, "p1", "v1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("Mutation on missing playlist", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)

		mock.ExpectExec(`(?s)^\s*UPDATE playlists\s+SET name = \$1`).
			WithArgs("new", sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.Rename(ctx, "missing", "new"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Update writes name and tracks in one statement", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(`(?s)UPDATE playlists\s+SET name = \$1, tracks = \$2::jsonb, updated_at = GREATEST\(\$3, updated_at \+ 1\)\s+WHERE id = \$4`).
			WithArgs("Renamed", `[{"id":"v1"}]`, now.UnixNano(), "p1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.Update(ctx, "p1", "Renamed", []models.TrackRef{{ID: "v1"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("Create casts tracks to jsonb", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`)).
			WithArgs(sqlmock.AnyArg(), "u1", "Mix", `[]`, "youtube", now.UnixNano(), now.UnixNano()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		p, err := repo.Create(ctx, "u1", "Mix", nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Source != models.SourceYouTube {
			t.Errorf("expected youtube source, got %s", p.Source)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("ListByUser decodes jsonb", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)

		rows := sqlmock.NewRows([]string{"id", "user_id", "name", "tracks", "source", "created_at", "updated_at"}).
			AddRow("p2", "u1", "Newer", []byte(`[{"id":"a"},{"id":"a"}]`), "internal", now.UnixNano(), now.Add(time.Minute).UnixNano()).
			AddRow("p1", "u1", "Older", []byte(`[]`), "youtube", now.UnixNano(), now.UnixNano())

		mock.ExpectQuery(regexp.QuoteMeta(`FROM playlists WHERE user_id = $1 ORDER BY updated_at DESC`)).
			WithArgs("u1").
			WillReturnRows(rows)

		got, err := repo.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].ID != "p2" || len(got[0].Tracks) != 2 {
			t.Fatalf("unexpected playlists: %+v", got)
		}
		if !got[0].UpdatedAt.Equal(now.Add(time.Minute)) {
			t.Errorf("unexpected updated_at %s", got[0].UpdatedAt)
		}
		if got[0].Source != models.SourceInternal {
			t.Errorf("unexpected source %s", got[0].Source)
		}
	})

	t.Run("Query error is wrapped", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewPlaylistRepository(db, DialectPostgres)

		mock.ExpectQuery(`FROM playlists WHERE user_id`).WillReturnError(errors.New("db down"))

		_, err := repo.ListByUser(ctx, "u1")
		if err == nil || !regexp.MustCompile(`failed to query playlists: .*db down`).MatchString(err.Error()) {
			t.Fatalf("expected wrapped db error, got %v", err)
		}
	})
}

func TestPostgresCredentialRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Put upserts on composite key", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewCredentialRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(`(?s)INSERT INTO credentials.*ON CONFLICT \(user_id, provider\) DO UPDATE`).
			WithArgs("u1", "google", "at", "rt", now.Add(time.Hour).UnixNano(), int64(0), now.UnixNano(), now.UnixNano()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Put(ctx, &models.Credential{
			UserID:       "u1",
			Provider:     models.ProviderGoogle,
			AccessToken:  "at",
			RefreshToken: "rt",
			ExpiresAt:    now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("UpdateAccessToken matches refresh token", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewCredentialRepository(db, DialectPostgres)
		repo.now = frozenClock(now)

		mock.ExpectExec(regexp.QuoteMeta(`WHERE user_id = $5 AND provider = $6 AND refresh_token = $7`)).
			WithArgs("at", now.Add(time.Hour).UnixNano(), now.UnixNano(), now.UnixNano(), "u1", "google", "rt").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateAccessToken(ctx, &models.Credential{
			UserID:          "u1",
			Provider:        models.ProviderGoogle,
			AccessToken:     "at",
			RefreshToken:    "rt",
			ExpiresAt:       now.Add(time.Hour),
			LastRefreshedAt: now,
		})
		if !errors.Is(err, shared.ErrCredentialChanged) {
			t.Fatalf("expected ErrCredentialChanged, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewCredentialRepository(db, DialectPostgres)

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 AND provider = $2`)).
			WithArgs("u1", "google").
			WillReturnError(sql.ErrNoRows)

		if _, err := repo.Get(ctx, "u1", models.ProviderGoogle); !errors.Is(err, shared.ErrNoCredential) {
			t.Fatalf("expected ErrNoCredential, got %v", err)
		}
	})

	t.Run("Get found", func(t *testing.T) {
		db, mock := newPostgresMock(t)
		repo := NewCredentialRepository(db, DialectPostgres)

		rows := sqlmock.NewRows([]string{"user_id", "provider", "access_token", "refresh_token", "expires_at", "last_refreshed_at", "created_at", "updated_at"}).
			AddRow("u1", "google", "at", "rt", now.UnixNano(), now.UnixNano(), now.UnixNano(), now.UnixNano())
		mock.ExpectQuery(`FROM credentials`).WithArgs("u1", "google").WillReturnRows(rows)

		got, err := repo.Get(ctx, "u1", models.ProviderGoogle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.AccessToken != "at" || !got.ExpiresAt.Equal(now) || got.Provider != models.ProviderGoogle {
			t.Errorf("unexpected credential %+v", got)
		}
	})
}
