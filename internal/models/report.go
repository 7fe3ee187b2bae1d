package models

import "time"

// RunState is the state of a sync run.
type RunState int

const (
	StateFetchingRemoteListing RunState = iota
	StateDiffing
	StateResolving
	StateFetchingContent
	StateCommitting
	StateDone
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateFetchingRemoteListing:
		return "fetching_remote_listing"
	case StateDiffing:
		return "diffing"
	case StateResolving:
		return "resolving"
	case StateFetchingContent:
		return "fetching_content"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Terminal reports whether no further transition can happen.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// ParseRunState is the inverse of [RunState.String].
func ParseRunState(s string) (RunState, bool) {
	for st := StateFetchingRemoteListing; st <= StateCancelled; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// FailureKind classifies a per-track failure.
type FailureKind string

const (
	FailureUnresolvable FailureKind = "unresolvable"
	FailureFetchFailed  FailureKind = "fetch_failed"
)

// TrackFailure is one track that could not be added or refreshed.
type TrackFailure struct {
	SourceID string      `json:"source_id"`
	Title    string      `json:"title"`
	Artist   string      `json:"artist"`
	Kind     FailureKind `json:"kind"`
	Reason   string      `json:"reason"`
}

// SyncReport summarizes a finished sync run. Added, Updated and Removed hold source ids.
type SyncReport struct {
	RunID      string         `json:"run_id"`
	Playlist   string         `json:"playlist"`
	Added      []string       `json:"added"`
	Updated    []string       `json:"updated"`
	Removed    []string       `json:"removed"`
	Failed     []TrackFailure `json:"failed"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// NewSyncReport returns a report with non-nil slices.
func NewSyncReport(runID, playlist string, started time.Time) *SyncReport {
	return &SyncReport{
		RunID:     runID,
		Playlist:  playlist,
		Added:     []string{},
		Updated:   []string{},
		Removed:   []string{},
		Failed:    []TrackFailure{},
		StartedAt: started,
	}
}

// Partial reports whether some tracks failed even though the run completed.
func (r *SyncReport) Partial() bool {
	return len(r.Failed) > 0
}

// Empty reports whether the run changed nothing and had no failures.
func (r *SyncReport) Empty() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Removed) == 0 && len(r.Failed) == 0
}
