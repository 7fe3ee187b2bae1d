// Package models defines domain entities and persistence interfaces for the plsync playlist engine.
//
// The package contains three categories of types:
//
// 1. Manifest types: the on-disk playlist.json representation
//   - [Playlist] : name, settings, source and derived aggregates
//   - [Track] : one audio file with its metadata and play statistics
//   - [Source], [Settings]
//
// 2. Run types: ephemeral values owned by a single sync run
//   - [RemoteTrack], [RemoteListing] : what a remote playlist source returned
//   - [Candidate] : a ranked downloadable match for a remote track
//   - [StoredFile] : a verified file renamed into a playlist folder
//   - [SyncReport], [TrackFailure], [RunState]
//
// 3. Persistent entities: database-backed run history
//   - [SyncRun] : implements [Entity]; stored through a [Repository]
//
// [Origin] is a closed set (manual, spotify, youtube_music) with a fixed [Capabilities] value per member.
package models
