package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plsync/internal/fetch"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// configPath returns $PLSYNC_CONFIG, falling back to config.toml in the working directory.
func configPath() string {
	if p := os.Getenv("PLSYNC_CONFIG"); p != "" {
		return p
	}
	return "config.toml"
}

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	path := configPath()
	if _, err := os.Stat(path); err == nil {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			logger.Fatal("failed to load config", "path", path, "error", err)
		}
		config = loaded
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	store := manifest.NewStore(manifest.Options{Logger: logger})

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
	}

	engine, history := newEngine(config, store, db, logger)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Logger:  logger,
		Store:   store,
		Engine:  engine,
		History: history,
		Prober:  fetch.NewFFprobe(),
	})

	app := &cli.Command{
		Name:     "plsync",
		Usage:    "Keep local playlist folders in sync with Spotify & YouTube Music playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, os.Args)
	stop()
	if db != nil {
		db.Close()
	}

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrCancelled):
		logger.Warn("sync cancelled, nothing was committed")
		os.Exit(130)
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
	default:
		logger.Fatalf("application error: %v", err)
	}
}
