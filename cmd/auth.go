package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const defaultAuthTimeout = 2 * time.Minute

// AuthGoogle performs the OAuth2 consent flow and stores the resulting credential.
//
// Starts a local HTTP server serving only the link routes, opens the browser on the consent page,
// and waits for the callback.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireOAuthClient(config); err != nil {
		return err
	}

	// Without a configured secret, sign states with a per-process one.
	secret := config.Server.StateSecret
	if secret == "" {
		secret = shared.GenerateID()
	}

	return r.withStack(ctx, cmd, func(s *stack) error {
		link := server.NewLinkHandler(services.NewOAuthConfig(config.OAuth), s.credentials, secret, server.LinkOptions{
			HTTPClient:       r.httpClient,
			DefaultExpiresIn: config.Vault.DefaultExpiresIn,
			Logger:           r.logger,
		})
		srv := server.New(config.Server, server.Deps{Link: link, Logger: r.logger})

		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		serverErrors := make(chan error, 1)
		go func() { serverErrors <- srv.Run(srvCtx) }()

		authURL, err := link.AuthURL(userID)
		if err != nil {
			return err
		}

		if cmd.Bool("no-browser") {
			r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
		} else {
			r.writePlain("→ Opening browser for Google authorization...\n")
			if err := r.openBrowser(authURL); err != nil {
				r.logger.Warn("failed to open browser automatically", "err", err)
				r.writePlainln("%s", styles.warn.Render("⚠ Could not open browser automatically."))
				r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
			}
		}

		timeout := cmd.Duration("timeout")
		r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		var result server.LinkResult
		select {
		case result = <-link.Results():
		case err := <-serverErrors:
			if err == nil {
				err = ctx.Err()
			}
			return fmt.Errorf("server error: %w", err)
		case <-timer.C:
			return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}

		cancel()
		if err := <-serverErrors; err != nil {
			r.logger.Warn("error shutting down server", "err", err)
		}

		if result.Err != nil {
			return fmt.Errorf("authorization failed: %w", result.Err)
		}

		r.writePlainln("%s", styles.ok.Render("✓ Google account linked for "+userID))
		r.writePlain("Access token expires at %s\n", result.Credential.ExpiresAt.Local().Format(time.RFC1123))
		return r.writePlain("%s\n", styles.help.Render("You can now use: tapedeck youtube playlists --user "+userID))
	})
}

type credentialStatus struct {
	UserID          string    `json:"userId"`
	Provider        string    `json:"provider"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	ExpiresAt       time.Time `json:"expiresAt"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`
	Valid           bool      `json:"valid"`
}

// AuthStatus shows the stored credential with tokens redacted.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	return r.withStack(ctx, cmd, func(s *stack) error {
		cred, err := s.credentials.Get(ctx, cmd.String("user"), models.ProviderGoogle)
		if err != nil {
			return err
		}

		status := credentialStatus{
			UserID:          cred.UserID,
			Provider:        string(cred.Provider),
			AccessToken:     shared.RedactToken(cred.AccessToken),
			RefreshToken:    shared.RedactToken(cred.RefreshToken),
			ExpiresAt:       cred.ExpiresAt,
			LastRefreshedAt: cred.LastRefreshedAt,
			Valid:           cred.ValidFor(time.Now(), r.config.Vault.ExpiryMargin),
		}

		if cmd.Bool("json") {
			return r.writeJSON(status, cmd.Bool("pretty"))
		}

		r.writePlainHeader("Credential: " + status.UserID)
		r.writePlain("Provider:       %s\n", status.Provider)
		r.writePlain("Access token:   %s\n", status.AccessToken)
		r.writePlain("Refresh token:  %s\n", status.RefreshToken)
		r.writePlain("Expires at:     %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
		if !status.LastRefreshedAt.IsZero() {
			r.writePlain("Last refreshed: %s\n", status.LastRefreshedAt.Local().Format(time.RFC1123))
		}
		if status.Valid {
			return r.writePlain("Status:         %s\n", styles.ok.Render("valid"))
		}
		return r.writePlain("Status:         %s\n", styles.warn.Render("expired (refreshed on next use)"))
	})
}

// AuthRevoke deletes the stored credential. Revoking an unlinked user is not an error.
func (r *Runner) AuthRevoke(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	return r.withStack(ctx, cmd, func(s *stack) error {
		if err := s.credentials.Delete(ctx, userID, models.ProviderGoogle); err != nil {
			return err
		}
		r.logger.Info("credential deleted", "user", userID)
		return r.writePlain("%s\n", styles.ok.Render("✓ Credential removed for "+userID))
	})
}

// Token prints a valid access token for the user.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	return r.withStack(ctx, cmd, func(s *stack) error {
		var (
			token string
			err   error
		)
		if cmd.Bool("force") {
			token, err = s.vault.ForceRefresh(ctx, userID, models.ProviderGoogle)
		} else {
			token, err = s.vault.ValidAccessToken(ctx, userID, models.ProviderGoogle)
		}
		if err != nil {
			return err
		}

		if cmd.Bool("redact") {
			token = shared.RedactToken(token)
		}
		return r.writePlain("%s\n", token)
	})
}
