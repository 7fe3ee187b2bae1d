// Package metadata canonicalizes track metadata gathered from heterogeneous sources into one record.
//
// # Priority
//
// [Normalize] merges, per field, the first non-empty value from:
//  1. embedded file tags ([ReadTags])
//  2. source service metadata (the remote listing or chosen candidate)
//  3. filename heuristics ([ParseFilename])
//
// Duration is the exception: a decoded duration measured from the file wins over every other source.
// Missing optional fields stay empty rather than guessed. Title is never empty; it falls back to the
// filename without its extension.
//
// Unreadable tags are reported through [ErrMalformedTags] while normalization still completes from the remaining sources.
package metadata
