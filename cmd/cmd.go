// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const version = "0.3.0"

// app builds the root command. --config is inherited by every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tapedeck",
		Usage:   "Keep YouTube credentials fresh and manage playlists across sources",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("TAPEDECK_CONFIG"),
			},
		},
		Commands: r.register(),
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID the operation acts for",
		Required: true,
		Sources:  cli.EnvVars("TAPEDECK_USER"),
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles first-run initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles account linking
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Link, inspect and revoke provider accounts",
		Commands: []*cli.Command{
			{
				Name:  "google",
				Usage: "Link a Google account using the OAuth2 consent flow",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultAuthTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening a browser",
					},
				},
				Action: r.AuthGoogle,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential for a user",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.AuthStatus,
			},
			{
				Name:   "revoke",
				Usage:  "Delete the stored credential for a user",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AuthRevoke,
			},
		},
	}
}

// tokenCommand prints a valid access token
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print a valid access token, refreshing it when needed",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Refresh even if the cached token is still valid",
			},
			&cli.BoolFlag{
				Name:  "redact",
				Usage: "Only print the first and last characters",
			},
		},
		Action: r.Token,
	}
}

// playlistsCommand handles stored playlist operations
func playlistsCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage stored playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List a user's playlists, most recently updated first",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show one playlist with its tracks",
				Arguments: idArg,
				Flags:     jsonFlags(),
				Action:    r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create an empty playlist",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Playlist name", Required: true},
					&cli.StringFlag{Name: "source", Usage: "internal, youtube or spotify", Value: "internal"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:      "rename",
				Usage:     "Rename a playlist",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name", Required: true},
				},
				Action: r.PlaylistsRename,
			},
			{
				Name:      "add",
				Usage:     "Append a track",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "track", Usage: "Track ID", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Track title"},
					&cli.StringFlag{Name: "artist", Usage: "Track artist"},
					&cli.StringFlag{Name: "source", Usage: "Track source", Value: "youtube"},
				},
				Action: r.PlaylistsAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove every occurrence of a track",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "track", Usage: "Track ID", Required: true},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist as csv, markdown, text or json",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, text or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default {id}_tracks.{ext}, - for stdout)"},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: idArg,
				Action:    r.PlaylistsDelete,
			},
		},
	}
}

// youtubeCommand handles reads against the linked YouTube account
func youtubeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "youtube",
		Aliases: []string{"yt"},
		Usage:   "Read the linked YouTube library",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List one page of the user's YouTube playlists",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "page-token", Usage: "Cursor from a previous page"},
				}, jsonFlags()...),
				Action: r.YouTubePlaylists,
			},
			{
				Name:      "items",
				Usage:     "List one page of a YouTube playlist's items",
				Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "page-token", Usage: "Cursor from a previous page"},
				}, jsonFlags()...),
				Action: r.YouTubeItems,
			},
			{
				Name:      "import",
				Usage:     "Import one or more YouTube playlists into the store",
				ArgsUsage: "<playlist-id> [playlist-id...]",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Name of the stored playlist (single import only)"},
					&cli.IntFlag{Name: "max-items", Usage: "Per-playlist track cap", Value: 5000},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent imports (bulk only)", Value: 3},
					&cli.Float64Flag{Name: "rate", Usage: "Playlists started per second (bulk only)", Value: 2},
				},
				Action: r.YouTubeImport,
			},
		},
	}
}
