package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

var barLabels = map[models.RunState]string{
	models.StateResolving:       "Resolving tracks",
	models.StateFetchingContent: "Downloading tracks",
}

// Sync syncs one playlist folder, or with --all every playlist of the library that has a remote source.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	format := formatter.ReportFormat(cmd.String("format"))
	if format != formatter.ReportText && format != formatter.ReportJSON {
		return fmt.Errorf("%w: unknown report format %q (text, json)", shared.ErrInvalidArgument, format)
	}

	if cmd.Bool("all") {
		return r.syncAll(ctx, cmd.Int("workers"), format)
	}

	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}
	if cmd.Bool("tui") {
		return r.syncTUI(ctx, dir, format)
	}

	r.logger.Info("starting sync", "playlist", dir)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.followProgress(progress)
	}()

	report, err := r.engine.Sync(ctx, dir, progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}
	return formatter.WriteReport(r.output, report, format)
}

// followProgress prints phase messages and draws a bar for the per-track phases.
func (r *Runner) followProgress(updates <-chan tasks.ProgressUpdate) {
	var bar *progressbar.ProgressBar
	phase := models.RunState(-1)

	finish := func() {
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(r.progress)
			bar = nil
		}
	}

	for u := range updates {
		if u.Phase != phase {
			finish()
			phase = u.Phase
		}

		label, ok := barLabels[u.Phase]
		if !ok || u.Total == 0 {
			fmt.Fprintln(r.progress, u.Message)
			continue
		}
		if bar == nil {
			bar = r.newBar(u.Total, label)
		}
		bar.Set(u.Step)
	}
	finish()
}

func (r *Runner) newBar(total int, label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(label),
	)
}

// playlistResult is the JSON shape of one playlist in a --all sync.
type playlistResult struct {
	Playlist string             `json:"playlist"`
	Report   *models.SyncReport `json:"report,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func (r *Runner) syncAll(ctx context.Context, workers int, format formatter.ReportFormat) error {
	dirs, err := r.syncablePlaylists()
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		r.writePlain("No playlists with a remote source in %s\n", r.root())
		return nil
	}

	r.logger.Info("syncing library", "playlists", len(dirs), "workers", workers)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			if u.Phase == models.StateFetchingRemoteListing || u.Done() {
				fmt.Fprintln(r.progress, u.Message)
			}
		}
	}()

	result := r.engine.SyncAll(ctx, dirs, tasks.SyncAllOpts{NumWorkers: workers}, progress)
	close(progress)
	<-done

	if format == formatter.ReportJSON {
		out := make([]playlistResult, 0, len(result.Results))
		for _, res := range result.Results {
			pr := playlistResult{Playlist: filepath.Base(res.Dir), Report: res.Report}
			if res.Error != nil {
				pr.Error = res.Error.Error()
			}
			out = append(out, pr)
		}
		if err := r.writeJSON(out, true); err != nil {
			return err
		}
	} else {
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("✗ %s: %v\n\n", filepath.Base(res.Dir), res.Error)
				continue
			}
			if err := formatter.WriteReport(r.output, res.Report, format); err != nil {
				return err
			}
			r.writePlain("\n")
		}
		r.writePlainHeader(fmt.Sprintf("Synced %d/%d playlists", result.Succeeded, result.TotalPlaylists))
	}

	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
	case result.Failed > 0:
		return fmt.Errorf("%w: %d of %d playlists failed", shared.ErrSyncIncomplete, result.Failed, result.TotalPlaylists)
	}
	return nil
}

// syncablePlaylists returns the library folders whose manifest names a listable remote source.
func (r *Runner) syncablePlaylists() ([]string, error) {
	dirs, err := manifest.List(r.root())
	if err != nil {
		return nil, err
	}

	syncable := []string{}
	for _, dir := range dirs {
		m, err := r.store.Load(dir)
		if err != nil {
			r.logger.Warn("skipping playlist", "dir", dir, "error", err)
			continue
		}
		if src := m.Playlist.Source; src != nil && src.Type.Capabilities().ListTracks {
			syncable = append(syncable, dir)
		}
	}
	return syncable, nil
}
