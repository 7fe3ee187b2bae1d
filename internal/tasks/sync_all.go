package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/plsync/internal/models"
)

// SyncAllOpts contains configuration for syncing several playlists.
type SyncAllOpts struct {
	NumWorkers int // Concurrent runs (default: 2, max: 8)
}

// PlaylistSyncResult is the outcome of one run started by [PlaylistEngine.SyncAll].
type PlaylistSyncResult struct {
	Dir    string
	Report *models.SyncReport
	Error  error
}

// SyncAllResult summarizes [PlaylistEngine.SyncAll].
type SyncAllResult struct {
	TotalPlaylists int
	Succeeded      int
	Failed         int
	Results        []PlaylistSyncResult
}

// SyncAll syncs every folder in dirs with up to NumWorkers runs at once.
//
// Each run has its own fetch pool, so a large playlist does not starve the others. A failed run is
// recorded in the result and does not stop the remaining ones.
func (e *PlaylistEngine) SyncAll(ctx context.Context, dirs []string, opts SyncAllOpts, prog chan<- ProgressUpdate) *SyncAllResult {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}

	result := &SyncAllResult{
		TotalPlaylists: len(dirs),
		Results:        make([]PlaylistSyncResult, 0, len(dirs)),
	}

	jobs := make(chan string, len(dirs))
	results := make(chan PlaylistSyncResult, len(dirs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.syncWorker(ctx, &wg, jobs, results, prog)
	}

	for _, dir := range dirs {
		jobs <- dir
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		result.Results = append(result.Results, res)
		if res.Error == nil {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result
}

// syncWorker is a worker goroutine that syncs playlist folders from the jobs channel.
func (e *PlaylistEngine) syncWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan string,
	results chan<- PlaylistSyncResult,
	prog chan<- ProgressUpdate,
) {
	defer wg.Done()

	for dir := range jobs {
		if err := ctx.Err(); err != nil {
			results <- PlaylistSyncResult{Dir: dir, Error: fmt.Errorf("not started: %w", err)}
			continue
		}
		report, err := e.Sync(ctx, dir, prog)
		results <- PlaylistSyncResult{Dir: dir, Report: report, Error: err}
	}
}
