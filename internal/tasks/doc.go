// Package tasks coordinates sync runs between a remote playlist and its local folder.
//
// # Sync Runs
//
// [PlaylistEngine.Sync] moves one run through its states:
//
//  1. Fetching-Remote-Listing : read the complete remote listing through a [services.Lister]
//  2. Diffing : compare listed source ids with the manifest (add, refresh, remove)
//  3. Resolving : rank candidates for every track to add
//  4. Fetching-Content : download, verify and tag the best candidate of each track
//  5. Committing : stage all changes against a freshly loaded manifest and commit them
//
// A run that cannot read the listing or load the manifest fails with a [RunError] naming the state.
// Per-track failures are collected in the report and the run still completes. Removals and
// source.last_sync are only ever staged by a run that read its listing completely.
//
// # Cancellation
//
// [PlaylistEngine.Cancel] is checked between tracks. Tracks already dispatched finish normally, no
// further tracks start and nothing is committed. Files already renamed into place stay in the folder.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains the run state, step counters, messages, and optional data for
// advanced UI rendering. Updates use select with default to prevent blocking.
//
// # Concurrency
//
// Each run gets its own fetch pool. Runs on different folders proceed independently; the advisory
// folder lock rejects a second run on the same folder with [shared.ErrLocked].
// [PlaylistEngine.SyncAll] runs several folders with a small worker pool.
package tasks
