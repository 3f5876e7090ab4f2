package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default config.toml.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Edit server.url to point at your library server.\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		} else {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file", "error", err)
			} else {
				r.logger.Info("config file created", "path", configPath)
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready: %s\n", config.Database.Path)
	return nil
}

// SetupStatus lists the embedded migrations and whether each has been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlain("Database: %s\n", r.config.Database.Path)
	for _, s := range states {
		if s.Applied {
			r.writePlain("  %04d  %-20s applied %s\n", s.Version, s.Name, s.AppliedAt)
		} else {
			r.writePlain("  %04d  %-20s pending\n", s.Version, s.Name)
		}
	}
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to drop the cached tables", shared.ErrMissingArgument)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	version, err := shared.RollbackMigration(db)
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	r.logger.Warn("migration rolled back", "path", r.config.Database.Path, "version", version)
	r.writePlain("✓ Rolled back migration %04d\n", version)
	return nil
}
