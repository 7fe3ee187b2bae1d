package models

import (
	"fmt"
	"time"
)

// SyncRun is the persisted summary of one sync run.
type SyncRun struct {
	id           string
	sequence     int
	playlistPath string
	origin       Origin
	state        RunState
	failedStage  string
	added        int
	updated      int
	removed      int
	failed       int
	errMessage   string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

var _ Entity = (*SyncRun)(nil)

// NewSyncRun creates an unsaved run record for the playlist at path.
func NewSyncRun(id, playlistPath string, origin Origin, startedAt time.Time) *SyncRun {
	return &SyncRun{
		id:           id,
		playlistPath: playlistPath,
		origin:       origin,
		state:        StateFetchingRemoteListing,
		startedAt:    startedAt,
		createdAt:    startedAt,
		updatedAt:    startedAt,
	}
}

func (r *SyncRun) ID() string               { return r.id }
func (r *SyncRun) Sequence() int            { return r.sequence }
func (r *SyncRun) PlaylistPath() string     { return r.playlistPath }
func (r *SyncRun) Origin() Origin           { return r.origin }
func (r *SyncRun) State() RunState          { return r.state }
func (r *SyncRun) FailedStage() string      { return r.failedStage }
func (r *SyncRun) ErrorMessage() string     { return r.errMessage }
func (r *SyncRun) StartedAt() time.Time     { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time   { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time     { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time     { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time    { return r.deletedAt }
func (r *SyncRun) Counts() (a, u, d, f int) { return r.added, r.updated, r.removed, r.failed }

func (r *SyncRun) SetID(id string)            { r.id = id }
func (r *SyncRun) SetSequence(seq int)        { r.sequence = seq }
func (r *SyncRun) SetUpdatedAt(t time.Time)   { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)  { r.deletedAt = t }
func (r *SyncRun) SetCreatedAt(t time.Time)   { r.createdAt = t }
func (r *SyncRun) SetState(s RunState)        { r.state = s }
func (r *SyncRun) SetOrigin(o Origin)         { r.origin = o }
func (r *SyncRun) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *SyncRun) SetCounts(a, u, d, f int)   { r.added, r.updated, r.removed, r.failed = a, u, d, f }

// Fail marks the run failed at stage with err.
func (r *SyncRun) Fail(stage RunState, err error, at time.Time) {
	r.state = StateFailed
	r.failedStage = stage.String()
	if err != nil {
		r.errMessage = err.Error()
	}
	r.finishedAt = &at
}

// SetFailure restores the failure columns of a stored run.
func (r *SyncRun) SetFailure(stage, message string) {
	r.failedStage = stage
	r.errMessage = message
}

// Finish records the counts of report and moves the run to state.
func (r *SyncRun) Finish(state RunState, report *SyncReport, at time.Time) {
	r.state = state
	if report != nil {
		r.SetCounts(len(report.Added), len(report.Updated), len(report.Removed), len(report.Failed))
	}
	r.finishedAt = &at
}

// Validate checks required fields.
func (r *SyncRun) Validate() error {
	if r.playlistPath == "" {
		return fmt.Errorf("sync run requires a playlist path")
	}
	if !r.origin.Valid() {
		return fmt.Errorf("sync run has invalid origin %q", r.origin)
	}
	if r.state.String() == "" {
		return fmt.Errorf("sync run has invalid state %d", r.state)
	}
	return nil
}
