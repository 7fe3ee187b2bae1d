// Package fetch retrieves resolved candidates into playlist folders.
//
// # Retry
//
// Every fetch is driven by a [Retry] state machine: attempt count, next delay and a terminal
// [Outcome]. Only transient failures ([IsTransient]: timeouts, rate limiting, 5xx) are retried,
// with exponential backoff. Missing content and a full disk fail on the first attempt.
//
// # Placement
//
// [Fetcher.Fetch] downloads into a hidden temporary file inside the destination folder, verifies
// it with a [Prober], then asks the [Allocator] for a unique filename and renames the file into
// place under a per-folder lock. Readers of the folder only ever see complete, verified files.
//
// # Concurrency
//
// A [Pool] bounds how many tracks of one sync run are processed at once. Pools are created per
// run, so runs over different playlists never share a limit.
package fetch
