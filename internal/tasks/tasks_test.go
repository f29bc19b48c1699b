package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

type fakeTokens struct {
	token        string
	refreshed    string
	err          error
	refreshErr   error
	validCalls   atomic.Int32
	refreshCalls atomic.Int32
}

func (f *fakeTokens) ValidAccessToken(ctx context.Context, userID string, provider models.Provider) (string, error) {
	f.validCalls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeTokens) ForceRefresh(ctx context.Context, userID string, provider models.Provider) (string, error) {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

// fakeGateway serves pages by index; the cursor is the next page's index.
type fakeGateway struct {
	mu        sync.Mutex
	pages     map[string][]*services.ItemPage
	playlists *services.PlaylistPage
	rejected  string // token answered with 401
	itemErr   map[string]error
	calls     []string
}

func (g *fakeGateway) ListPlaylists(ctx context.Context, token, cursor string) (*services.PlaylistPage, error) {
	g.mu.Lock()
	g.calls = append(g.calls, "playlists:"+token)
	g.mu.Unlock()

	if token == g.rejected {
		return nil, &services.GatewayError{Kind: services.KindUnauthorized, StatusCode: 401}
	}
	return g.playlists, nil
}

func (g *fakeGateway) ListPlaylistItems(ctx context.Context, token, playlistID, cursor string) (*services.ItemPage, error) {
	g.mu.Lock()
	g.calls = append(g.calls, "items:"+playlistID+":"+token)
	g.mu.Unlock()

	if token == g.rejected {
		return nil, &services.GatewayError{Kind: services.KindUnauthorized, StatusCode: 401}
	}
	if err := g.itemErr[playlistID]; err != nil {
		return nil, err
	}

	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(cursor)
	}
	pages := g.pages[playlistID]
	if idx >= len(pages) {
		return nil, &services.GatewayError{Kind: services.KindUnknown, StatusCode: 404}
	}
	return pages[idx], nil
}

type fakeWriter struct {
	mu      sync.Mutex
	created []*models.Playlist
	err     error
}

func (w *fakeWriter) Create(ctx context.Context, userID, name string, tracks []models.TrackRef, source models.Source) (*models.Playlist, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	p := &models.Playlist{
		ID:     fmt.Sprintf("pl-%d", len(w.created)+1),
		UserID: userID,
		Name:   name,
		Tracks: tracks,
		Source: source,
	}
	w.created = append(w.created, p)
	return p, nil
}

func video(id, title, channel string) services.Item {
	extra := map[string]any{}
	if id != "" {
		extra["videoId"] = id
	}
	if channel != "" {
		extra["channelTitle"] = channel
	}
	return services.Item{ID: "item-" + id, Title: title, ThumbnailURL: "https://i.ytimg.com/" + id, Extra: extra}
}

// pagesOf splits items into pages of size n with numeric cursors.
func pagesOf(n int, items ...services.Item) []*services.ItemPage {
	var pages []*services.ItemPage
	for i := 0; i < len(items); i += n {
		end := min(i+n, len(items))
		page := &services.ItemPage{Items: items[i:end], TotalResults: len(items)}
		if end < len(items) {
			page.NextCursor = strconv.Itoa(len(pages) + 1)
		}
		pages = append(pages, page)
	}
	return pages
}

func newTestLibrary(tokens *fakeTokens, gw *fakeGateway, w *fakeWriter) *Library {
	return NewLibrary(tokens, gw, w, shared.NewLogger(nil))
}

func TestLibrary_Playlists(t *testing.T) {
	t.Run("uses vault token", func(t *testing.T) {
		tokens := &fakeTokens{token: "good"}
		gw := &fakeGateway{playlists: &services.PlaylistPage{Playlists: []services.Item{{ID: "PL1"}}}}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		page, err := lib.Playlists(context.Background(), "u1", "")
		if err != nil {
			t.Fatalf("Playlists() error = %v", err)
		}
		if len(page.Playlists) != 1 || page.Playlists[0].ID != "PL1" {
			t.Errorf("unexpected page: %+v", page)
		}
		if tokens.refreshCalls.Load() != 0 {
			t.Errorf("ForceRefresh called %d times, want 0", tokens.refreshCalls.Load())
		}
	})

	t.Run("retries once after 401", func(t *testing.T) {
		tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
		gw := &fakeGateway{rejected: "stale", playlists: &services.PlaylistPage{}}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		if _, err := lib.Playlists(context.Background(), "u1", ""); err != nil {
			t.Fatalf("Playlists() error = %v", err)
		}
		if tokens.refreshCalls.Load() != 1 {
			t.Errorf("ForceRefresh called %d times, want 1", tokens.refreshCalls.Load())
		}
		want := []string{"playlists:stale", "playlists:fresh"}
		if fmt.Sprint(gw.calls) != fmt.Sprint(want) {
			t.Errorf("calls = %v, want %v", gw.calls, want)
		}
	})

	t.Run("second 401 is returned", func(t *testing.T) {
		tokens := &fakeTokens{token: "stale", refreshed: "stale"}
		gw := &fakeGateway{rejected: "stale"}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		_, err := lib.Playlists(context.Background(), "u1", "")
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(gw.calls) != 2 {
			t.Errorf("gateway called %d times, want 2", len(gw.calls))
		}
	})

	t.Run("refresh failure after 401", func(t *testing.T) {
		refreshErr := &services.RefreshError{Reason: services.ReasonInvalidGrant, Err: errors.New("revoked")}
		tokens := &fakeTokens{token: "stale", refreshErr: refreshErr}
		gw := &fakeGateway{rejected: "stale"}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		_, err := lib.Playlists(context.Background(), "u1", "")
		if !errors.Is(err, shared.ErrInvalidGrant) {
			t.Errorf("expected ErrInvalidGrant, got %v", err)
		}
	})

	t.Run("no credential", func(t *testing.T) {
		tokens := &fakeTokens{err: shared.ErrNoCredential}
		gw := &fakeGateway{}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		_, err := lib.Playlists(context.Background(), "u1", "")
		if !errors.Is(err, shared.ErrNoCredential) {
			t.Errorf("expected ErrNoCredential, got %v", err)
		}
		if len(gw.calls) != 0 {
			t.Errorf("gateway should not be called, got %v", gw.calls)
		}
	})

	t.Run("forbidden is not retried", func(t *testing.T) {
		tokens := &fakeTokens{token: "good"}
		gw := &fakeGateway{itemErr: map[string]error{
			"PL1": &services.GatewayError{Kind: services.KindForbidden, StatusCode: 403},
		}}
		lib := newTestLibrary(tokens, gw, &fakeWriter{})

		_, err := lib.PlaylistItems(context.Background(), "u1", "PL1", "")
		if !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if tokens.refreshCalls.Load() != 0 {
			t.Errorf("ForceRefresh called on 403")
		}
	})
}

func TestLibrary_Import(t *testing.T) {
	items := []services.Item{
		video("v1", "Song One", "Artist A - Topic"),
		video("", "Deleted video", ""),
		video("v2", "Song Two", "Artist B"),
		video("v3", "Song Three", "Artist C"),
		video("v4", "Song Four", ""),
	}

	t.Run("pages through all items", func(t *testing.T) {
		gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL1": pagesOf(2, items...)}}
		w := &fakeWriter{}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

		res, err := lib.Import(context.Background(), nil, "u1", "PL1", ImportOpts{Name: "Road trip"})
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}

		if res.Pages != 3 {
			t.Errorf("Pages = %d, want 3", res.Pages)
		}
		if res.Imported != 4 || res.Skipped != 1 {
			t.Errorf("Imported/Skipped = %d/%d, want 4/1", res.Imported, res.Skipped)
		}
		if len(w.created) != 1 {
			t.Fatalf("created %d playlists, want 1", len(w.created))
		}

		pl := w.created[0]
		if pl.Name != "Road trip" || pl.UserID != "u1" || pl.Source != models.SourceYouTube {
			t.Errorf("unexpected playlist: %+v", pl)
		}
		want := []string{"v1", "v2", "v3", "v4"}
		if fmt.Sprint(pl.TrackIDs()) != fmt.Sprint(want) {
			t.Errorf("track ids = %v, want %v", pl.TrackIDs(), want)
		}
		if pl.Tracks[0].Artist != "Artist A" {
			t.Errorf("topic suffix not stripped: %q", pl.Tracks[0].Artist)
		}
		if pl.Tracks[0].Source != models.SourceYouTube {
			t.Errorf("track source = %q", pl.Tracks[0].Source)
		}
	})

	t.Run("default name", func(t *testing.T) {
		gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL9": pagesOf(10, items...)}}
		w := &fakeWriter{}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

		res, err := lib.Import(context.Background(), nil, "u1", "PL9", ImportOpts{})
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if res.Playlist.Name != "YouTube import PL9" {
			t.Errorf("Name = %q", res.Playlist.Name)
		}
	})

	t.Run("max items stops paging", func(t *testing.T) {
		gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL1": pagesOf(2, items...)}}
		w := &fakeWriter{}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

		res, err := lib.Import(context.Background(), nil, "u1", "PL1", ImportOpts{MaxItems: 1})
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if res.Imported != 1 || res.Pages != 1 {
			t.Errorf("Imported/Pages = %d/%d, want 1/1", res.Imported, res.Pages)
		}
	})

	t.Run("blank playlist id", func(t *testing.T) {
		lib := newTestLibrary(&fakeTokens{token: "good"}, &fakeGateway{}, &fakeWriter{})
		_, err := lib.Import(context.Background(), nil, "u1", "  ", ImportOpts{})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("gateway failure stores nothing", func(t *testing.T) {
		gw := &fakeGateway{itemErr: map[string]error{
			"PL1": &services.GatewayError{Kind: services.KindUnknown, StatusCode: 500},
		}}
		w := &fakeWriter{}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

		_, err := lib.Import(context.Background(), nil, "u1", "PL1", ImportOpts{})
		if !errors.Is(err, shared.ErrProviderUnknown) {
			t.Errorf("expected ErrProviderUnknown, got %v", err)
		}
		if len(w.created) != 0 {
			t.Errorf("playlist stored despite failure")
		}
	})

	t.Run("store failure", func(t *testing.T) {
		gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL1": pagesOf(10, items...)}}
		w := &fakeWriter{err: errors.New("disk full")}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

		_, err := lib.Import(context.Background(), nil, "u1", "PL1", ImportOpts{})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL1": pagesOf(2, items...)}}
		lib := newTestLibrary(&fakeTokens{token: "good"}, gw, &fakeWriter{})

		progress := make(chan ProgressUpdate, 20)
		if _, err := lib.Import(context.Background(), progress, "u1", "PL1", ImportOpts{}); err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[FetchToken] != 1 || phases[FetchItems] != 3 || phases[CreatePlaylist] != 1 {
			t.Errorf("unexpected phase counts: %v", phases)
		}
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	gw := &fakeGateway{pages: map[string][]*services.ItemPage{"PL1": pagesOf(1, video("v1", "a", ""), video("v2", "b", ""))}}
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, &fakeWriter{})

	// Unbuffered and never read.
	progress := make(chan ProgressUpdate)

	done := make(chan error, 1)
	go func() {
		_, err := lib.Import(context.Background(), progress, "u1", "PL1", ImportOpts{})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Import() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Import() blocked on progress sends")
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchToken, "fetch_token"},
		{FetchItems, "fetch_items"},
		{CreatePlaylist, "create_playlist"},
		{ImportPlaylist, "import_playlist"},
		{Phase(99), ""},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
