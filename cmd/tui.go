package main

import (
	"context"
	"fmt"
	"os"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing and syncing the library.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	restore, err := r.logToFile()
	if err != nil {
		return err
	}
	defer restore()

	model := ui.NewModel(ctx, r.engine, r.store, r.root())
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// syncTUI follows a single sync run in the progress view and prints its report once the view exits.
func (r *Runner) syncTUI(ctx context.Context, dir string, format formatter.ReportFormat) error {
	restore, err := r.logToFile()
	if err != nil {
		return err
	}

	model := ui.NewSyncModel(ctx, r.engine, r.store, dir)
	_, err = tea.NewProgram(model).Run()
	restore()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if report := model.Report(); report != nil {
		return formatter.WriteReport(r.output, report, format)
	}
	return nil
}

// logToFile redirects logs to the state dir so they don't interfere with TUI rendering.
func (r *Runner) logToFile() (func(), error) {
	path, err := xdg.StateFile("plsync/tui.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	r.logger.SetOutput(f)
	return func() {
		r.logger.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
