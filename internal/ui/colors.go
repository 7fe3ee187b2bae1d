package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const (
	purple = lipgloss.Color("#7D56F4")
	green  = lipgloss.Color("#04B575")
	red    = lipgloss.Color("#FF0000")
	orange = lipgloss.Color("#FFA500")
	grey   = lipgloss.Color("#626262")
)

var styles = struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}{
	title: lipgloss.NewStyle().Foreground(purple).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(green).Bold(true),
	err:   lipgloss.NewStyle().Foreground(red).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(orange),
	help:  lipgloss.NewStyle().Foreground(grey).Italic(true),
}

// failureLine renders one failed track. Unresolvable tracks are muted since a later run may find
// them; fetch failures stand out.
func failureLine(f models.TrackFailure) string {
	line := fmt.Sprintf("  • %s - %s (%s)", f.Artist, f.Title, f.Kind)
	if f.Kind == models.FailureUnresolvable {
		return styles.help.Render(line)
	}
	return styles.warn.Render(line)
}

// stoppedLine renders the outcome of a run that produced no report.
func stoppedLine(err error) string {
	if errors.Is(err, shared.ErrCancelled) {
		return styles.warn.Render("Sync cancelled, no changes were written")
	}
	return styles.err.Render(fmt.Sprintf("Sync stopped: %v", err))
}
