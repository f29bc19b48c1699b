package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/metrics"
	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/services"
)

// Serve runs the HTTP API until interrupted.
//
// Every process-wide secret must be configured; a missing one is a startup error.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}

	m := metrics.NewMetrics("tapedeck")
	s, err := r.openStack(ctx, config, m)
	if err != nil {
		return err
	}
	defer s.Close()

	link := server.NewLinkHandler(services.NewOAuthConfig(config.OAuth), s.credentials, config.Server.StateSecret, server.LinkOptions{
		HTTPClient:       r.httpClient,
		DefaultExpiresIn: config.Vault.DefaultExpiresIn,
		Logger:           r.logger,
	})

	srv := server.New(config.Server, server.Deps{
		Playlists: s.playlists,
		Library:   s.library,
		Link:      link,
		Metrics:   m,
		Logger:    r.logger,
	})

	r.logger.Info("starting tapedeck", "addr", config.Server.Addr(), "driver", config.Database.Driver)
	return srv.Run(ctx)
}
