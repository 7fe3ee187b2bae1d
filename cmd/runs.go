package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

type runRow struct {
	ID          string     `json:"id"`
	Playlist    string     `json:"playlist"`
	Origin      string     `json:"origin"`
	State       string     `json:"state"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	Added       int        `json:"added"`
	Updated     int        `json:"updated"`
	Removed     int        `json:"removed"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func toRunRow(run *models.SyncRun) runRow {
	a, u, d, f := run.Counts()
	return runRow{
		ID:          run.ID(),
		Playlist:    run.PlaylistPath(),
		Origin:      string(run.Origin()),
		State:       run.State().String(),
		FailedStage: run.FailedStage(),
		Error:       run.ErrorMessage(),
		Added:       a,
		Updated:     u,
		Removed:     d,
		Failed:      f,
		StartedAt:   run.StartedAt(),
		FinishedAt:  run.FinishedAt(),
	}
}

// Runs lists recorded sync runs, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: run history requires a database, run 'plsync setup' first", shared.ErrServiceUnavailable)
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if name := cmd.String("playlist"); name != "" {
		dir, err := r.playlistDir(name)
		if err != nil {
			return err
		}
		criteria["playlist_path"] = dir
	}
	if state := cmd.String("state"); state != "" {
		if _, ok := models.ParseRunState(state); !ok {
			return fmt.Errorf("%w: unknown run state %q", shared.ErrInvalidArgument, state)
		}
		criteria["state"] = state
	}

	runs, err := r.history.List(criteria)
	if err != nil {
		return err
	}

	rows := make([]runRow, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, toRunRow(run))
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	if len(rows) == 0 {
		r.writePlain("No sync runs recorded\n")
		return nil
	}

	for _, row := range rows {
		r.writePlain("%s  %-24s %-10s +%d ~%d -%d ✗%d\n",
			row.StartedAt.Local().Format("2006-01-02 15:04"), filepath.Base(row.Playlist), row.State,
			row.Added, row.Updated, row.Removed, row.Failed)
		if row.Error != "" {
			r.writePlain("    %s: %s\n", row.FailedStage, row.Error)
		}
	}
	return nil
}
