// Package manifest owns the on-disk representation of folder-backed playlists.
//
// Every playlist is a folder holding audio files and a playlist.json manifest. The [Store] is the
// only writer of manifests:
//
//   - [Store.Load] reads and validates a manifest ([Decode], [Validate])
//   - [Store.Stage] applies [Mutation] values to a private copy, producing a [ChangeSet]
//   - [Store.Commit] writes the change set atomically (temporary file and rename)
//
// # Optimistic concurrency
//
// A change set remembers the file [Version] (modification time and size) it was staged from.
// Commit returns [shared.ErrConflict] when the file changed since, leaving it untouched; the
// caller reloads and stages again.
//
// # Mutations
//
// [AddTrack], [UpdateTrack], [RemoveTrack], [UpdateSettings], [RecordPlay], [RecordSkip],
// [MarkSynced] and [SetCover]. RemoveTrack refuses manually added tracks and tracks still present
// in the remote listing.
//
// # Locking
//
// [AcquireLock] takes an advisory lock on a playlist folder so only one sync run writes into it at a time.
package manifest
