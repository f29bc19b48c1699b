package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

func bulkGateway(n int) (*fakeGateway, []string) {
	gw := &fakeGateway{pages: map[string][]*services.ItemPage{}}
	ids := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("PL%d", i+1)
		gw.pages[id] = pagesOf(2, video(id+"-a", "a", ""), video(id+"-b", "b", ""), video(id+"-c", "c", ""))
		ids = append(ids, id)
	}
	return gw, ids
}

func TestBulkImport_Success(t *testing.T) {
	gw, ids := bulkGateway(4)
	w := &fakeWriter{}
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

	result, err := lib.BulkImport(context.Background(), nil, "u1", ids, BulkImportOpts{NumWorkers: 2, RateLimit: 100})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}

	if result.Total != 4 || result.Succeeded != 4 || result.Failed != 0 {
		t.Errorf("Total/Succeeded/Failed = %d/%d/%d, want 4/4/0", result.Total, result.Succeeded, result.Failed)
	}
	if len(w.created) != 4 {
		t.Errorf("created %d playlists, want 4", len(w.created))
	}
	for _, res := range result.Results {
		if res.Imported != 3 {
			t.Errorf("%s imported %d tracks, want 3", res.SourceID, res.Imported)
		}
	}
}

func TestBulkImport_PartialFailures(t *testing.T) {
	gw, ids := bulkGateway(3)
	gw.itemErr = map[string]error{
		"PL2": &services.GatewayError{Kind: services.KindForbidden, StatusCode: 403},
	}
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, &fakeWriter{})

	result, err := lib.BulkImport(context.Background(), nil, "u1", ids, BulkImportOpts{RateLimit: 100})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", result.Succeeded, result.Failed)
	}
	if !errors.Is(result.Errors["PL2"], shared.ErrForbidden) {
		t.Errorf("PL2 error = %v, want ErrForbidden", result.Errors["PL2"])
	}
}

func TestBulkImport_NoCredential(t *testing.T) {
	gw, ids := bulkGateway(2)
	lib := newTestLibrary(&fakeTokens{err: shared.ErrNoCredential}, gw, &fakeWriter{})

	_, err := lib.BulkImport(context.Background(), nil, "u1", ids, BulkImportOpts{})
	if !errors.Is(err, shared.ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("gateway called %d times, want 0", len(gw.calls))
	}
}

func TestBulkImport_EmptyIDs(t *testing.T) {
	lib := newTestLibrary(&fakeTokens{token: "good"}, &fakeGateway{}, &fakeWriter{})

	_, err := lib.BulkImport(context.Background(), nil, "u1", nil, BulkImportOpts{})
	if !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestBulkImport_ContextCancellation(t *testing.T) {
	gw, ids := bulkGateway(5)
	w := &fakeWriter{}
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// fakeTokens ignores ctx, so the up-front token check still passes.
	result, err := lib.BulkImport(ctx, nil, "u1", ids, BulkImportOpts{RateLimit: 1})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	if result.Failed != 5 || result.Succeeded != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 0/5", result.Succeeded, result.Failed)
	}
	for id, err := range result.Errors {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", id, err)
		}
	}
	if len(w.created) != 0 {
		t.Errorf("created %d playlists after cancellation", len(w.created))
	}
}

func TestBulkImport_RateLimiting(t *testing.T) {
	gw, ids := bulkGateway(3)
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, &fakeWriter{})

	start := time.Now()
	result, err := lib.BulkImport(context.Background(), nil, "u1", ids, BulkImportOpts{NumWorkers: 3, RateLimit: 10})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	elapsed := time.Since(start)

	if result.Succeeded != 3 {
		t.Errorf("Succeeded = %d, want 3", result.Succeeded)
	}
	// Burst of 1 at 10/s: the third job starts no earlier than ~200ms in.
	if elapsed < 150*time.Millisecond {
		t.Errorf("elapsed %v, expected rate limiting to space job starts", elapsed)
	}
}

func TestBulkImport_ProgressUpdates(t *testing.T) {
	gw, ids := bulkGateway(3)
	gw.itemErr = map[string]error{"PL3": errors.New("boom")}
	lib := newTestLibrary(&fakeTokens{token: "good"}, gw, &fakeWriter{})

	progress := make(chan ProgressUpdate, 10)
	if _, err := lib.BulkImport(context.Background(), progress, "u1", ids, BulkImportOpts{RateLimit: 100}); err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	close(progress)

	var steps []int
	for u := range progress {
		if u.Phase != ImportPlaylist {
			t.Errorf("unexpected phase %v", u.Phase)
		}
		if u.Total != 3 {
			t.Errorf("Total = %d, want 3", u.Total)
		}
		steps = append(steps, u.Step)
	}
	if fmt.Sprint(steps) != "[1 2 3]" {
		t.Errorf("steps = %v, want [1 2 3]", steps)
	}
}
