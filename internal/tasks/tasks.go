// package tasks implements the synchronization coordinator.
//
// The core abstraction is SyncEngine, which runs one sync per playlist folder and lets callers follow
// and cancel runs by id. Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/fetch"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/metadata"
	"github.com/desertthunder/plsync/internal/metrics"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

const maxRetainedRuns = 100

// Config tunes a [PlaylistEngine]. Zero values take defaults.
type Config struct {
	Concurrency    int     // tracks resolved or fetched at once per run (default 3)
	RateLimit      float64 // track dispatches per second per run, 0 for unlimited
	CommitRetries  int     // reload and retry attempts after a commit conflict (default 3)
	DownloadCovers bool
}

// ConfigFromShared builds the engine config from the [sync] section of the config file.
func ConfigFromShared(s shared.SyncConfig) Config {
	return Config{
		Concurrency:    s.Concurrency,
		RateLimit:      s.RateLimit,
		CommitRetries:  s.CommitRetries,
		DownloadCovers: s.DownloadCovers,
	}
}

// CandidateResolver ranks downloadable candidates for a remote track.
type CandidateResolver interface {
	Resolve(ctx context.Context, ref models.RemoteTrack) ([]models.Candidate, error)
}

// ContentFetcher stores a candidate as a verified file inside a playlist folder.
type ContentFetcher interface {
	Fetch(ctx context.Context, c models.Candidate, dir, base string) (models.StoredFile, error)
}

// ResolutionStore remembers which candidate produced a track.
type ResolutionStore interface {
	Store(sourceID string, c models.Candidate) error
}

// RunRecorder persists run summaries, e.g. repositories.SyncRunRepository.
type RunRecorder interface {
	Create(run *models.SyncRun) error
	Update(run *models.SyncRun) error
}

// ManifestStore loads, stages and commits playlist manifests, e.g. [manifest.Store].
type ManifestStore interface {
	Load(dir string) (*manifest.Manifest, error)
	Stage(m *manifest.Manifest, mutations ...manifest.Mutation) (*manifest.ChangeSet, error)
	Commit(dir string, cs *manifest.ChangeSet) error
}

// Dependencies are the collaborators of a [PlaylistEngine]. Resolver and Fetcher are required;
// Covers, Resolutions and Runs are optional.
type Dependencies struct {
	Store       ManifestStore
	Listers     services.Listers
	Resolver    CandidateResolver
	Fetcher     ContentFetcher
	Covers      CoverFetcher
	Resolutions ResolutionStore
	Runs        RunRecorder
	Logger      *log.Logger
	Clock       func() time.Time
}

// SyncEngine defines the operations the presentation layer uses to drive sync runs.
type SyncEngine interface {
	// Sync runs a sync of the playlist folder at dir and blocks until it finishes.
	Sync(ctx context.Context, dir string, progress chan<- ProgressUpdate) (*models.SyncReport, error)

	// Start runs a sync in the background and returns its run id.
	Start(ctx context.Context, dir string, progress chan<- ProgressUpdate) string

	// Cancel stops dispatching further tracks of a run. No commit happens for a cancelled run.
	Cancel(runID string) error

	// Status reports the current state of a run.
	Status(runID string) (RunStatus, error)
}

// RunError is a run-level failure together with the state the run was in.
type RunError struct {
	RunID string
	Stage models.RunState
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sync failed while %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// RunStatus is a snapshot of a run.
type RunStatus struct {
	ID        string
	Playlist  string
	State     models.RunState
	Step      int
	Total     int
	StartedAt time.Time
	Report    *models.SyncReport // set once the run is done
	Err       error              // set once the run failed or was cancelled
}

type runEntry struct {
	id      string
	dir     string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	state  models.RunState
	step   int
	total  int
	report *models.SyncReport
	err    error
}

func (r *runEntry) progress(state models.RunState, step, total int) {
	r.mu.Lock()
	r.state, r.step, r.total = state, step, total
	r.mu.Unlock()
}

func (r *runEntry) complete(state models.RunState, report *models.SyncReport, err error) {
	r.mu.Lock()
	r.state, r.report, r.err = state, report, err
	r.mu.Unlock()
	close(r.done)
}

func (r *runEntry) status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunStatus{
		ID:        r.id,
		Playlist:  r.dir,
		State:     r.state,
		Step:      r.step,
		Total:     r.total,
		StartedAt: r.started,
		Report:    r.report,
		Err:       r.err,
	}
}

// PlaylistEngine implements SyncEngine.
//
// Any number of runs may execute at once as long as they target different folders; a second run
// on a busy folder fails with [shared.ErrLocked].
type PlaylistEngine struct {
	cfg  Config
	deps Dependencies

	mu       sync.Mutex
	runs     map[string]*runEntry
	finished []string
}

var _ SyncEngine = (*PlaylistEngine)(nil)

// NewPlaylistEngine creates a new PlaylistEngine with the provided config and collaborators.
func NewPlaylistEngine(cfg Config, deps Dependencies) *PlaylistEngine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 3
	}
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = 3
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewDiscardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Store == nil {
		deps.Store = manifest.NewStore(manifest.Options{Logger: deps.Logger, Clock: deps.Clock})
	}
	return &PlaylistEngine{cfg: cfg, deps: deps, runs: map[string]*runEntry{}}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Sync runs a sync of dir and returns its report.
//
// Per-track failures end up in the report's Failed list and do not fail the run. Run-level failures
// are returned as [*RunError]; cancellation returns an error wrapping [shared.ErrCancelled].
func (e *PlaylistEngine) Sync(ctx context.Context, dir string, progress chan<- ProgressUpdate) (*models.SyncReport, error) {
	r, runCtx := e.register(ctx, dir)
	defer r.cancel()
	return e.execute(runCtx, r, progress)
}

// Start runs a sync of dir in the background. The run outlives ctx; stop it with [PlaylistEngine.Cancel].
// progress is never closed by the engine.
func (e *PlaylistEngine) Start(ctx context.Context, dir string, progress chan<- ProgressUpdate) string {
	r, runCtx := e.register(context.WithoutCancel(ctx), dir)
	go func() {
		defer r.cancel()
		e.execute(runCtx, r, progress)
	}()
	return r.id
}

// Wait blocks until the run finishes or ctx is done and returns the run's outcome.
func (e *PlaylistEngine) Wait(ctx context.Context, runID string) (*models.SyncReport, error) {
	r, err := e.lookup(runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.done:
		st := r.status()
		return st.Report, st.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel signals the run to stop. Cancelling a finished run is a no-op.
func (e *PlaylistEngine) Cancel(runID string) error {
	r, err := e.lookup(runID)
	if err != nil {
		return err
	}
	r.cancel()
	return nil
}

// Status returns a snapshot of a recent run.
func (e *PlaylistEngine) Status(runID string) (RunStatus, error) {
	r, err := e.lookup(runID)
	if err != nil {
		return RunStatus{}, err
	}
	return r.status(), nil
}

// Runs returns snapshots of every retained run.
func (e *PlaylistEngine) Runs() []RunStatus {
	e.mu.Lock()
	entries := make([]*runEntry, 0, len(e.runs))
	for _, r := range e.runs {
		entries = append(entries, r)
	}
	e.mu.Unlock()

	out := make([]RunStatus, 0, len(entries))
	for _, r := range entries {
		out = append(out, r.status())
	}
	return out
}

func (e *PlaylistEngine) lookup(runID string) (*runEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, runID)
	}
	return r, nil
}

func (e *PlaylistEngine) register(ctx context.Context, dir string) (*runEntry, context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r := &runEntry{
		id:      shared.GenerateID(),
		dir:     filepath.Clean(dir),
		started: e.deps.Clock(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	e.mu.Lock()
	e.runs[r.id] = r
	e.mu.Unlock()
	return r, runCtx
}

// retire keeps the registry bounded by forgetting the oldest finished runs.
func (e *PlaylistEngine) retire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, id)
	for len(e.finished) > maxRetainedRuns {
		delete(e.runs, e.finished[0])
		e.finished = e.finished[1:]
	}
}

func (e *PlaylistEngine) pool(logger *log.Logger) *fetch.Pool {
	var limiter *rate.Limiter
	if e.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.RateLimit), 1)
	}
	return fetch.NewPool(e.cfg.Concurrency, limiter, logger)
}

// execute drives one run through its states.
//
// Fetching-Remote-Listing → Diffing → Resolving → Fetching-Content → Committing → Done, with Failed
// reachable from any state and Cancelled from any state before Committing.
func (e *PlaylistEngine) execute(ctx context.Context, r *runEntry, progress chan<- ProgressUpdate) (report *models.SyncReport, err error) {
	logger := shared.WithLogger(e.deps.Logger, "run_id", r.id, "playlist", r.dir)
	stage := models.StateFetchingRemoteListing

	run := models.NewSyncRun(r.id, r.dir, models.OriginManual, r.started)
	defer func() {
		e.finish(r, run, report, err, progress, logger)
	}()

	fail := func(err error) error {
		return &RunError{RunID: r.id, Stage: stage, Err: err}
	}
	cancelled := func() error {
		return fmt.Errorf("%w: stopped while %s", shared.ErrCancelled, stage)
	}
	enter := func(s models.RunState, total int) {
		stage = s
		r.progress(s, 0, total)
		logger.Debug("entering state", "state", s, "total", total)
	}

	if e.deps.Resolver == nil || e.deps.Fetcher == nil {
		return nil, fail(fmt.Errorf("%w: resolver and fetcher are required", shared.ErrServiceUnavailable))
	}

	// The lock file is only created inside an existing playlist folder.
	if _, err := os.Stat(manifest.Path(r.dir)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, r.dir)
		}
		return nil, fail(err)
	}
	lock, err := manifest.AcquireLock(r.dir)
	if err != nil {
		return nil, fail(err)
	}
	defer lock.Release()

	if err := fetch.RemoveStaleTemp(r.dir); err != nil {
		logger.Warn("failed to remove stale temporary files", "error", err)
	}

	m, err := e.deps.Store.Load(r.dir)
	if err != nil {
		return nil, fail(err)
	}
	source := m.Playlist.Source
	if source == nil {
		return nil, fail(fmt.Errorf("%w: playlist has no remote source", shared.ErrUnsupportedOrigin))
	}
	run.SetOrigin(source.Type)
	if e.deps.Runs != nil {
		if err := e.deps.Runs.Create(run); err != nil {
			logger.Warn("failed to record sync run", "error", err)
		}
	}

	lister, err := e.deps.Listers.For(source.Type)
	if err != nil {
		return nil, fail(err)
	}

	enter(models.StateFetchingRemoteListing, 1)
	e.sendProgress(progress, listingUpdate(r.id, m.Playlist.Name))
	listing, err := lister.ListTracks(ctx, source.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled()
		}
		return nil, fail(fmt.Errorf("%w: %s: %w", shared.ErrRemoteUnavailable, lister.Name(), err))
	}
	if ctx.Err() != nil {
		return nil, cancelled()
	}

	enter(models.StateDiffing, 1)
	pl := diff(m.Playlist, listing.Tracks)
	e.sendProgress(progress, diffUpdate(r.id, pl))
	logger.Info("remote listing read", "listed", len(pl.listed), "add", len(pl.adds), "refresh", len(pl.refreshes), "remove", len(pl.removals))

	report = models.NewSyncReport(r.id, m.Playlist.Name, r.started)

	if alloc, ok := e.deps.Fetcher.(interface{ Allocator() *fetch.Allocator }); ok {
		names := make([]string, 0, len(m.Playlist.Tracks)+1)
		for _, t := range m.Playlist.Tracks {
			names = append(names, t.Filename)
		}
		names = append(names, models.ManifestFilename)
		alloc.Allocator().Reserve(r.dir, names...)
		defer alloc.Allocator().Release(r.dir)
	}

	enter(models.StateResolving, len(pl.adds))
	resolved, err := e.resolveAll(ctx, r, pl.adds, progress, logger)
	if err != nil {
		return nil, cancelled()
	}

	enter(models.StateFetchingContent, len(resolved))
	additions, failures, err := e.fetchAll(ctx, r, resolved, progress, logger)
	if err != nil {
		return nil, cancelled()
	}
	report.Failed = append(report.Failed, failures...)

	cover := e.fetchCover(ctx, r.dir, m.Playlist, listing.CoverURL, logger)
	if ctx.Err() != nil {
		return nil, cancelled()
	}

	enter(models.StateCommitting, e.cfg.CommitRetries+1)
	if err := e.commit(r, listing.Tracks, additions, cover, report, progress, logger); err != nil {
		return nil, fail(err)
	}

	for _, a := range additions {
		if e.deps.Resolutions == nil {
			break
		}
		if err := e.deps.Resolutions.Store(a.ref.SourceID, a.candidate); err != nil {
			logger.Warn("failed to remember resolution", "source_id", a.ref.SourceID, "error", err)
		}
	}
	return report, nil
}

// resolution is the resolver's outcome for one remote track.
type resolution struct {
	ref        models.RemoteTrack
	candidates []models.Candidate
	err        error
}

// addition is a remote track whose file is stored and verified, ready to be added to the manifest.
type addition struct {
	ref       models.RemoteTrack
	candidate models.Candidate
	track     models.Track
}

func (e *PlaylistEngine) resolveAll(ctx context.Context, r *runEntry, refs []models.RemoteTrack, progress chan<- ProgressUpdate, logger *log.Logger) ([]resolution, error) {
	out := make([]resolution, len(refs))
	var completed atomic.Int64
	total := len(refs)

	e.sendProgress(progress, resolveUpdate(r.id, 0, total, nil))
	_, err := e.pool(logger).Run(ctx, total, func(ctx context.Context, i int) {
		rt := refs[i]
		cands, err := e.deps.Resolver.Resolve(ctx, rt)
		out[i] = resolution{ref: rt, candidates: cands, err: err}
		if err != nil {
			logger.Warn("track unresolvable", "source_id", rt.SourceID, "error", err)
		}

		n := int(completed.Add(1))
		r.progress(models.StateResolving, n, total)
		e.sendProgress(progress, resolveUpdate(r.id, n, total, &rt))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fetchAll fetches every resolved track. Unresolvable tracks and fetch failures are returned as
// failures in listing order; they never stop the run.
func (e *PlaylistEngine) fetchAll(ctx context.Context, r *runEntry, resolved []resolution, progress chan<- ProgressUpdate, logger *log.Logger) ([]addition, []models.TrackFailure, error) {
	type result struct {
		add addition
		err error
	}
	results := make([]result, len(resolved))

	pending := make([]int, 0, len(resolved))
	for i, res := range resolved {
		if res.err == nil {
			pending = append(pending, i)
		}
	}

	var completed atomic.Int64
	total := len(pending)
	_, err := e.pool(logger).Run(ctx, total, func(ctx context.Context, j int) {
		i := pending[j]
		add, err := e.fetchOne(ctx, r.dir, resolved[i], logger)
		results[i] = result{add: add, err: err}

		n := int(completed.Add(1))
		r.progress(models.StateFetchingContent, n, total)
		e.sendProgress(progress, fetchUpdate(r.id, n, total, resolved[i].ref, err))
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		additions []addition
		failures  []models.TrackFailure
	)
	for i, res := range resolved {
		switch {
		case res.err != nil:
			failures = append(failures, trackFailure(res.ref, models.FailureUnresolvable, res.err))
		case results[i].err != nil:
			failures = append(failures, trackFailure(res.ref, models.FailureFetchFailed, results[i].err))
		default:
			additions = append(additions, results[i].add)
		}
	}
	return additions, failures, nil
}

// fetchOne tries the candidates of res in rank order until one is stored.
func (e *PlaylistEngine) fetchOne(ctx context.Context, dir string, res resolution, logger *log.Logger) (addition, error) {
	logger = logger.With("source_id", res.ref.SourceID)
	base := metadata.TrackFilename(res.ref.Artist, res.ref.Title)

	lastErr := fmt.Errorf("%w: no candidates", shared.ErrFetchFailed)
	for _, c := range res.candidates {
		stored, err := e.deps.Fetcher.Fetch(ctx, c, dir, base)
		if err != nil {
			lastErr = err
			logger.Warn("candidate failed", "handle", c.Handle, "error", err)
			if fetch.IsDiskFull(err) {
				break
			}
			continue
		}
		return addition{ref: res.ref, candidate: c, track: e.buildTrack(res.ref, stored, logger)}, nil
	}
	return addition{}, lastErr
}

// buildTrack normalizes the metadata of a stored file and writes it back as tags.
func (e *PlaylistEngine) buildTrack(ref models.RemoteTrack, stored models.StoredFile, logger *log.Logger) models.Track {
	fields, err := metadata.NormalizeFile(stored.Path, metadata.FromRemote(ref), stored.Duration)
	if err != nil {
		logger.Warn("unreadable tags, using remote metadata", "file", stored.Filename, "error", err)
	}

	now := e.deps.Clock()
	t := models.Track{
		Filename:       stored.Filename,
		SourceID:       ref.SourceID,
		FileHash:       stored.Hash,
		DownloadedDate: &now,
	}
	fields.Apply(&t)
	overlayRemote(&t, ref)

	final := metadata.Fields{
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		Genre:       t.Genre,
		Duration:    t.Duration,
		TrackNumber: t.TrackNumber,
		Year:        t.Year,
	}
	if err := metadata.WriteTags(stored.Path, final); err != nil {
		logger.Warn("failed to write tags", "file", stored.Filename, "error", err)
	} else if hash, err := shared.FileHash(stored.Path); err == nil {
		t.FileHash = hash
	}
	return t
}

func (e *PlaylistEngine) fetchCover(ctx context.Context, dir string, p *models.Playlist, url string, logger *log.Logger) string {
	if !e.cfg.DownloadCovers || e.deps.Covers == nil || url == "" || p.CoverImage != "" {
		return ""
	}
	name, err := e.deps.Covers.FetchCover(ctx, url, dir)
	if err != nil {
		logger.Warn("failed to fetch cover image", "url", url, "error", err)
		return ""
	}
	return name
}

// commit stages the run's changes against a freshly loaded manifest and commits them, reloading and
// restaging after a conflict up to the configured number of retries.
func (e *PlaylistEngine) commit(r *runEntry, listing []models.RemoteTrack, additions []addition, cover string, report *models.SyncReport, progress chan<- ProgressUpdate, logger *log.Logger) error {
	attempts := e.cfg.CommitRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		r.progress(models.StateCommitting, attempt, attempts)
		e.sendProgress(progress, commitUpdate(r.id, attempt, attempts))

		m, err := e.deps.Store.Load(r.dir)
		if err != nil {
			return err
		}
		cs, changes, err := e.stage(m, listing, additions, cover, logger)
		if err != nil {
			return err
		}

		err = e.deps.Store.Commit(r.dir, cs)
		if err == nil {
			report.Added = append(report.Added, changes.added...)
			report.Updated = append(report.Updated, changes.updated...)
			report.Removed = append(report.Removed, changes.removed...)
			report.Failed = append(report.Failed, changes.failed...)
			return nil
		}
		if !errors.Is(err, shared.ErrConflict) {
			return err
		}
		logger.Warn("manifest changed during sync, retrying commit", "attempt", attempt, "of", attempts)
	}
	return fmt.Errorf("%w: %w after %d attempt(s)", shared.ErrSyncIncomplete, shared.ErrConflict, attempts)
}

type stagedChanges struct {
	added   []string
	updated []string
	removed []string
	failed  []models.TrackFailure
}

func (e *PlaylistEngine) stage(m *manifest.Manifest, listing []models.RemoteTrack, additions []addition, cover string, logger *log.Logger) (*manifest.ChangeSet, stagedChanges, error) {
	var changes stagedChanges

	cs, err := e.deps.Store.Stage(m)
	if err != nil {
		return nil, changes, err
	}
	pl := diff(m.Playlist, listing)

	for _, a := range additions {
		if m.Playlist.TrackBySourceID(a.ref.SourceID) >= 0 {
			logger.Warn("track was added concurrently, discarding download", "source_id", a.ref.SourceID)
			os.Remove(filepath.Join(m.Dir, a.track.Filename))
			continue
		}
		if err := cs.Stage(manifest.AddTrack{Track: a.track}); err != nil {
			logger.Warn("manifest rejected track, discarding download", "source_id", a.ref.SourceID, "error", err)
			// A filename already in the playlist belongs to that track's file.
			if cs.Playlist().TrackByFilename(a.track.Filename) < 0 {
				os.Remove(filepath.Join(m.Dir, a.track.Filename))
			}
			changes.failed = append(changes.failed, trackFailure(a.ref, models.FailureFetchFailed, err))
			continue
		}
		changes.added = append(changes.added, a.ref.SourceID)
	}

	for _, rf := range pl.refreshes {
		if err := cs.Stage(rf.update); err != nil {
			return nil, changes, err
		}
		changes.updated = append(changes.updated, rf.sourceID)
	}

	for _, t := range pl.removals {
		if err := cs.Stage(manifest.RemoveTrack{Filename: t.Filename, Listed: pl.listed}); err != nil {
			return nil, changes, err
		}
		changes.removed = append(changes.removed, t.SourceID)
	}

	if cover != "" && m.Playlist.CoverImage == "" {
		if err := cs.Stage(manifest.SetCover{Filename: cover}); err != nil {
			return nil, changes, err
		}
	}
	if err := cs.Stage(manifest.MarkSynced{At: e.deps.Clock()}); err != nil {
		return nil, changes, err
	}
	return cs, changes, nil
}

// finish records the terminal state of a run.
func (e *PlaylistEngine) finish(r *runEntry, run *models.SyncRun, report *models.SyncReport, err error, progress chan<- ProgressUpdate, logger *log.Logger) {
	now := e.deps.Clock()

	var state models.RunState
	var runErr *RunError
	switch {
	case err == nil:
		state = models.StateDone
		report.FinishedAt = now
		run.Finish(state, report, now)
	case errors.Is(err, shared.ErrCancelled):
		state = models.StateCancelled
		run.Finish(state, nil, now)
	case errors.As(err, &runErr):
		state = models.StateFailed
		run.Fail(runErr.Stage, runErr.Err, now)
	default:
		state = models.StateFailed
		run.Fail(r.status().State, err, now)
	}

	if e.deps.Runs != nil {
		if run.Sequence() == 0 {
			if cerr := e.deps.Runs.Create(run); cerr != nil {
				logger.Warn("failed to record sync run", "error", cerr)
			}
		} else if uerr := e.deps.Runs.Update(run); uerr != nil {
			logger.Warn("failed to update sync run", "error", uerr)
		}
	}

	metrics.SyncRunsTotal.WithLabelValues(state.String()).Inc()
	metrics.SyncRunDuration.Observe(now.Sub(r.started).Seconds())
	if report != nil && state == models.StateDone {
		metrics.TracksTotal.WithLabelValues("added").Add(float64(len(report.Added)))
		metrics.TracksTotal.WithLabelValues("updated").Add(float64(len(report.Updated)))
		metrics.TracksTotal.WithLabelValues("removed").Add(float64(len(report.Removed)))
		metrics.TracksTotal.WithLabelValues("failed").Add(float64(len(report.Failed)))
	}

	if state != models.StateDone {
		report = nil
	}
	r.complete(state, report, err)
	e.retire(r.id)
	e.sendProgress(progress, finishedUpdate(r.id, state, report, err))

	switch state {
	case models.StateDone:
		logger.Info("sync done", "added", len(report.Added), "updated", len(report.Updated), "removed", len(report.Removed), "failed", len(report.Failed))
	case models.StateCancelled:
		logger.Info("sync cancelled")
	default:
		logger.Error("sync failed", "error", err)
	}
}

func trackFailure(rt models.RemoteTrack, kind models.FailureKind, err error) models.TrackFailure {
	return models.TrackFailure{
		SourceID: rt.SourceID,
		Title:    rt.Title,
		Artist:   rt.Artist,
		Kind:     kind,
		Reason:   err.Error(),
	}
}
