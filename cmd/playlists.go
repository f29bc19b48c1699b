package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

func playlistID(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return id, nil
}

// PlaylistsList prints a user's playlists, most recently updated first.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	return r.withStack(ctx, cmd, func(s *stack) error {
		playlists, err := s.playlists.ListByUser(ctx, cmd.String("user"))
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(playlists, cmd.Bool("pretty"))
		}

		if len(playlists) == 0 {
			return r.writePlain("%s\n", styles.help.Render("No playlists yet."))
		}

		r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
		for _, p := range playlists {
			r.writePlain("%s  %-30s %4d tracks  %-8s %s\n",
				p.ID, p.Name, len(p.Tracks), p.Source, p.UpdatedAt.Local().Format(time.DateTime))
		}
		return nil
	})
}

// PlaylistsShow prints one playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		p, err := s.playlists.Get(ctx, id)
		if err != nil {
			return err
		}
		return r.printPlaylist(p, cmd.Bool("json"), cmd.Bool("pretty"))
	})
}

// PlaylistsCreate creates an empty playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	source, err := models.ParseSource(cmd.String("source"))
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		p, err := s.playlists.Create(ctx, cmd.String("user"), cmd.String("name"), nil, source)
		if err != nil {
			return err
		}
		r.writePlain("%s\n", styles.ok.Render("✓ Created playlist "+p.Name))
		return r.writePlain("ID: %s\n", p.ID)
	})
}

// PlaylistsRename renames a playlist.
func (r *Runner) PlaylistsRename(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		if err := s.playlists.Rename(ctx, id, cmd.String("name")); err != nil {
			return err
		}
		return r.writePlain("%s\n", styles.ok.Render("✓ Renamed to "+cmd.String("name")))
	})
}

// PlaylistsAdd appends a track.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}
	source, err := models.ParseSource(cmd.String("source"))
	if err != nil {
		return err
	}

	track := models.TrackRef{
		ID:     cmd.String("track"),
		Title:  cmd.String("title"),
		Artist: cmd.String("artist"),
		Source: source,
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		if err := s.playlists.AppendTrack(ctx, id, track); err != nil {
			return err
		}
		return r.writePlain("%s\n", styles.ok.Render("✓ Added "+track.ID))
	})
}

// PlaylistsRemove removes every occurrence of a track.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		if err := s.playlists.RemoveTrack(ctx, id, cmd.String("track")); err != nil {
			return err
		}
		return r.writePlain("%s\n", styles.ok.Render("✓ Removed "+cmd.String("track")))
	})
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		if err := s.playlists.Delete(ctx, id); err != nil {
			return err
		}
		return r.writePlain("%s\n", styles.ok.Render("✓ Deleted "+id))
	})
}

// PlaylistsExport writes a playlist to a file, or to stdout with --output -.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		p, err := s.playlists.Get(ctx, id)
		if err != nil {
			return err
		}

		if cmd.String("output") == "-" {
			data, err := formatter.Render(p, format)
			if err != nil {
				return err
			}
			_, err = r.output.Write(data)
			return err
		}

		path, err := formatter.WriteExport(p, format, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", styles.ok.Render(fmt.Sprintf("✓ Exported %d tracks to %s", len(p.Tracks), path)))
	})
}

func (r *Runner) printPlaylist(p *models.Playlist, asJSON, pretty bool) error {
	if asJSON {
		return r.writeJSON(p, pretty)
	}

	r.writePlainHeader(p.Name)
	r.writePlain("ID:      %s\n", p.ID)
	r.writePlain("Owner:   %s\n", p.UserID)
	r.writePlain("Source:  %s\n", p.Source)
	r.writePlain("Updated: %s\n", p.UpdatedAt.Local().Format(time.DateTime))
	r.writePlainln("Tracks (%d):", len(p.Tracks))

	for i, t := range p.Tracks {
		line := t.ID
		if t.Title != "" {
			line = t.Title
			if t.Artist != "" {
				line += " - " + t.Artist
			}
			line += " (" + t.ID + ")"
		}
		r.writePlain("%3d. %s\n", i+1, line)
	}
	return nil
}
