package tasks

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// BulkImportOpts contains configuration for bulk playlist imports.
type BulkImportOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 10)
	RateLimit  float64 // Playlists started per second (default: 2)
	MaxItems   int     // Per-playlist track cap, see [ImportOpts]
}

// BulkImportResult collects the outcome of every requested playlist.
type BulkImportResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []ImportResult
	Errors    map[string]error
}

// BulkImport imports several provider playlists concurrently.
//
// A worker pool bounds concurrency and a limiter spaces out job starts so one user's import
// does not exhaust the provider quota. Partial failures are reported per playlist; the
// returned error is only set when nothing could be attempted.
func (l *Library) BulkImport(ctx context.Context, prog chan<- ProgressUpdate, userID string, ids []string, opts BulkImportOpts) (*BulkImportResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no playlist ids", shared.ErrMissingArgument)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	// Fail once up front when the user has no usable credential.
	if _, err := l.tokens.ValidAccessToken(ctx, userID, l.provider); err != nil {
		return nil, err
	}

	type outcome struct {
		id  string
		res *ImportResult
		err error
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan string, len(ids))
	results := make(chan outcome, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := ctx.Err(); err != nil {
					results <- outcome{id: id, err: err}
					continue
				}
				res, err := l.Import(ctx, nil, userID, id, ImportOpts{MaxItems: opts.MaxItems})
				results <- outcome{id: id, res: res, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				results <- outcome{id: id, err: err}
				continue
			}
			jobs <- id
		}
	}()

	// Every id yields exactly one outcome, from either the dispatcher or a worker.
	result := &BulkImportResult{Total: len(ids), Errors: map[string]error{}}
	for completed := 1; completed <= len(ids); completed++ {
		o := <-results
		if o.err != nil {
			result.Failed++
			result.Errors[o.id] = o.err
			sendProgress(prog, importFailedUpdate(completed, len(ids), o.id, o.err))
			continue
		}
		result.Succeeded++
		result.Results = append(result.Results, *o.res)
		sendProgress(prog, importCompletedUpdate(completed, len(ids), *o.res))
	}

	wg.Wait()
	return result, nil
}
