package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/metrics"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	lookupEnv   func(string) (string, bool)
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from the --config flag and the environment on first use. A nil HTTPClient
// leaves each outbound client with its configured timeout.
type RunnerOpts struct {
	Config      *shared.Config
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	LookupEnv   func(string) (string, bool)
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		lookupEnv:   opts.LookupEnv,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, tokenCommand, playlistsCommand, youtubeCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration once: file (if present) over embedded defaults, then environment.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	config := shared.DefaultConfig()
	path := cmd.String("config")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	config.ApplyEnv(r.lookupEnv)
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))

	r.config = config
	return config, nil
}

// stack is the wired object graph behind storage and provider commands.
type stack struct {
	db          *sql.DB
	credentials *repositories.CredentialRepository
	playlists   *repositories.PlaylistRepository
	vault       *services.CredentialVault
	gateway     *services.YouTubeGateway
	library     *tasks.Library
}

func (s *stack) Close() error {
	return s.db.Close()
}

// openStack opens the database, applies pending migrations and wires every component.
// m may be nil.
func (r *Runner) openStack(ctx context.Context, config *shared.Config, m *metrics.Metrics) (*stack, error) {
	if err := config.ValidateDatabase(); err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(config.Database.Driver, config.Database.DSN)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db, config.Database.Driver); err != nil {
		db.Close()
		return nil, err
	}

	dialect, err := repositories.DialectFor(config.Database.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	credentials := repositories.NewCredentialRepository(db, dialect)
	playlists := repositories.NewPlaylistRepository(db, dialect)

	refresher := services.NewGoogleTokenRefresher(config.OAuth, config.Vault.DefaultExpiresIn, r.httpClient)
	vault := services.NewCredentialVault(credentials, refresher, services.VaultOptions{
		ExpiryMargin:   config.Vault.ExpiryMargin,
		RefreshTimeout: config.OAuth.Timeout,
		Logger:         r.logger,
		Metrics:        m,
	})
	opts := []services.GatewayOption{services.WithGatewayMetrics(m)}
	if r.httpClient != nil {
		opts = append(opts, services.WithHTTPClient(r.httpClient))
	}
	gateway := services.NewYouTubeGateway(config.YouTube, opts...)

	return &stack{
		db:          db,
		credentials: credentials,
		playlists:   playlists,
		vault:       vault,
		gateway:     gateway,
		library:     tasks.NewLibrary(vault, gateway, playlists, r.logger),
	}, nil
}

// withStack loads config, opens the stack for the duration of fn and closes it afterwards.
func (r *Runner) withStack(ctx context.Context, cmd *cli.Command, fn func(*stack) error) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := r.openStack(ctx, config, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

func requireOAuthClient(config *shared.Config) error {
	if config.OAuth.ClientID == "" || config.OAuth.ClientSecret == "" {
		return fmt.Errorf("%w: oauth.client_id and oauth.client_secret (or GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET) must be set", shared.ErrMissingConfig)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n%s\n", styles.title.Render(title), styles.rule(lipgloss.Width(title)))
}

// exitMessage turns well-known errors into a hint for the user.
func exitMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		return "configuration incomplete; run 'tapedeck setup config' or set the environment variables"
	case errors.Is(err, shared.ErrNoCredential):
		return "no linked account; run 'tapedeck auth google --user <id>'"
	case errors.Is(err, shared.ErrInvalidGrant):
		return "the provider revoked access; link the account again with 'tapedeck auth google'"
	default:
		return ""
	}
}
