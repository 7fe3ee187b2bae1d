package tasks

import (
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI, TUI or HTTP layer for display.
type ProgressUpdate struct {
	RunID   string          // Run the update belongs to
	Phase   models.RunState // Current state of the run
	Step    int             // Current step number within phase
	Total   int             // Total steps in this phase
	Message string          // Human-readable message for display
	Data    any             // Optional phase-specific data for advanced UIs
}

// Done reports whether the update announces the end of the run.
func (u ProgressUpdate) Done() bool {
	return u.Phase.Terminal()
}

func listingUpdate(runID, name string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   models.StateFetchingRemoteListing,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Reading remote playlist for %s...", name),
	}
}

func diffUpdate(runID string, p plan) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   models.StateDiffing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d to add, %d to refresh, %d to remove", len(p.adds), len(p.refreshes), len(p.removals)),
		Data:    p.summary(),
	}
}

func resolveUpdate(runID string, step, total int, rt *models.RemoteTrack) ProgressUpdate {
	if rt == nil {
		return ProgressUpdate{
			RunID:   runID,
			Phase:   models.StateResolving,
			Step:    step,
			Total:   total,
			Message: "Searching for tracks...",
		}
	}
	return ProgressUpdate{
		RunID:   runID,
		Phase:   models.StateResolving,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, describe(*rt)),
	}
}

func fetchUpdate(runID string, step, total int, rt models.RemoteTrack, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, describe(rt))
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, describe(rt), err)
	}
	return ProgressUpdate{
		RunID:   runID,
		Phase:   models.StateFetchingContent,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func commitUpdate(runID string, attempt, total int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   models.StateCommitting,
		Step:    attempt,
		Total:   total,
		Message: "Writing playlist manifest...",
	}
}

func finishedUpdate(runID string, state models.RunState, report *models.SyncReport, err error) ProgressUpdate {
	u := ProgressUpdate{RunID: runID, Phase: state, Step: 1, Total: 1}
	switch {
	case err != nil:
		u.Message = fmt.Sprintf("Sync %s: %v", state, err)
	case report != nil:
		u.Message = fmt.Sprintf("Sync done: %d added, %d updated, %d removed, %d failed",
			len(report.Added), len(report.Updated), len(report.Removed), len(report.Failed))
		u.Data = report
	default:
		u.Message = "Sync " + state.String()
	}
	return u
}

func describe(rt models.RemoteTrack) string {
	if rt.Artist == "" {
		return rt.Title
	}
	return rt.Artist + " - " + rt.Title
}
