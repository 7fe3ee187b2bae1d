package main

import (
	"context"

	"github.com/desertthunder/plsync/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP control surface until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	router := server.NewRouter(r.engine, r.root(), r.logger)
	srv := server.New(r.config.Server, router, r.logger)

	r.logger.Info("serving sync API", "addr", srv.Addr(), "library", r.root())
	return srv.Run(ctx)
}
