package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// SetupConfig writes config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("%s\n", styles.ok.Render("✓ Config written to "+path))
	r.writePlain("%s\n", styles.help.Render("Fill in [oauth] and [youtube] or export GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and YOUTUBE_API_KEY."))
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateDatabase(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver)

	db, err := shared.NewDatabase(config.Database.Driver, config.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db, config.Database.Driver); err != nil {
		return err
	}

	version, err := shared.MigrationVersion(ctx, db, config.Database.Driver)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", styles.ok.Render(fmt.Sprintf("✓ Database ready (%s, schema version %d)", config.Database.Driver, version)))
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateDatabase(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Driver, config.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db, config.Database.Driver); err != nil {
		return err
	}

	version, err := shared.MigrationVersion(ctx, db, config.Database.Driver)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", styles.warn.Render(fmt.Sprintf("↩ Rolled back to schema version %d", version)))
}
