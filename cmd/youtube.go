package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// YouTubePlaylists prints one page of the user's YouTube playlists.
func (r *Runner) YouTubePlaylists(ctx context.Context, cmd *cli.Command) error {
	return r.withStack(ctx, cmd, func(s *stack) error {
		page, err := s.library.Playlists(ctx, cmd.String("user"), cmd.String("page-token"))
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(page, cmd.Bool("pretty"))
		}

		r.writePlainHeader(fmt.Sprintf("YouTube playlists (%d total)", page.TotalResults))
		for _, p := range page.Playlists {
			count := "?"
			if n, ok := p.Extra["itemCount"].(int); ok {
				count = fmt.Sprint(n)
			}
			r.writePlain("%-36s %-30s %5s items\n", p.ID, p.Title, count)
		}
		return r.writeNextPage(page.NextCursor)
	})
}

// YouTubeItems prints one page of a YouTube playlist's items.
func (r *Runner) YouTubeItems(ctx context.Context, cmd *cli.Command) error {
	playlistID := strings.TrimSpace(cmd.StringArg("playlist"))
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		page, err := s.library.PlaylistItems(ctx, cmd.String("user"), playlistID, cmd.String("page-token"))
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(page, cmd.Bool("pretty"))
		}

		r.writePlainHeader(fmt.Sprintf("Items in %s (%d total)", playlistID, page.TotalResults))
		for _, it := range page.Items {
			r.writePlain("%s\n", formatItem(it))
		}
		return r.writeNextPage(page.NextCursor)
	})
}

// YouTubeImport imports one playlist with live progress, or several through the bulk worker pool.
func (r *Runner) YouTubeImport(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one playlist id", shared.ErrMissingArgument)
	}
	userID := cmd.String("user")

	return r.withStack(ctx, cmd, func(s *stack) error {
		progress := make(chan tasks.ProgressUpdate, 16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for u := range progress {
				r.writePlain("  %s\n", u.Message)
			}
		}()

		var err error
		if len(ids) == 1 {
			err = r.importOne(ctx, s, progress, userID, ids[0], cmd)
		} else {
			err = r.importMany(ctx, s, progress, userID, ids, cmd)
		}

		close(progress)
		<-done
		return err
	})
}

func (r *Runner) importOne(ctx context.Context, s *stack, progress chan<- tasks.ProgressUpdate, userID, id string, cmd *cli.Command) error {
	res, err := s.library.Import(ctx, progress, userID, id, tasks.ImportOpts{
		Name:     cmd.String("name"),
		MaxItems: cmd.Int("max-items"),
	})
	if err != nil {
		return err
	}

	r.writePlain("%s\n", styles.ok.Render(fmt.Sprintf("✓ Imported %d tracks into %q", res.Imported, res.Playlist.Name)))
	if res.Skipped > 0 {
		r.writePlain("%s\n", styles.warn.Render(fmt.Sprintf("⚠ Skipped %d unavailable videos", res.Skipped)))
	}
	return r.writePlain("ID: %s\n", res.Playlist.ID)
}

func (r *Runner) importMany(ctx context.Context, s *stack, progress chan<- tasks.ProgressUpdate, userID string, ids []string, cmd *cli.Command) error {
	result, err := s.library.BulkImport(ctx, progress, userID, ids, tasks.BulkImportOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float64("rate"),
		MaxItems:   cmd.Int("max-items"),
	})
	if err != nil {
		return err
	}

	r.writePlainln("%s", styles.title.Render(fmt.Sprintf("Imported %d/%d playlists", result.Succeeded, result.Total)))
	for id, err := range result.Errors {
		r.writePlain("%s\n", styles.err.Render(fmt.Sprintf("✗ %s: %v", id, err)))
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d imports failed", result.Failed, result.Total)
	}
	return nil
}

func (r *Runner) writeNextPage(cursor string) error {
	if cursor == "" {
		return nil
	}
	return r.writePlainln("%s", styles.help.Render("More results: --page-token "+cursor))
}

func formatItem(it services.Item) string {
	videoID, _ := it.Extra["videoId"].(string)
	channel, _ := it.Extra["channelTitle"].(string)

	line := it.Title
	if channel != "" {
		line += " - " + channel
	}
	if videoID == "" {
		return line + " (unavailable)"
	}
	return fmt.Sprintf("%s [%s]", line, videoID)
}
