package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, runs database migrations and creates the library root.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
		config = shared.DefaultConfig()
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
	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	root := config.Library.Root
	if root == "" {
		root = shared.DefaultLibraryRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create library root: %w", err)
	}

	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s (schema v%d)\n", config.Database.Path, version)
	r.writePlain("✓ Library: %s\n", root)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s to sync Spotify playlists\n", configPath)
	r.writePlain("2. Run 'plsync playlist create \"Name\" --url <playlist url>'\n")
	return nil
}
