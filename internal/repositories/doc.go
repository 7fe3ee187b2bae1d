// Package repositories implements SQLite persistence for sync run history and resolution memory.
//
// Playlist manifests are never stored here; the playlist.json file in each folder is the source of truth.
// The database only holds data that is safe to lose: a log of past runs and the candidate chosen for each
// remote track, which later runs try first.
//
// Key Implementations:
//   - [SyncRunRepository] : Run history with state-based queries and soft deletes
//   - [ResolutionRepository] : Chosen candidate per source id
//   - [ResolutionCache] : Adapter exposing [ResolutionRepository] as the resolver's cache
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
