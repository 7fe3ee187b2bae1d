package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/fetch"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

type fakeLister struct {
	listing *models.RemoteListing
	err     error
}

func (f *fakeLister) ListTracks(ctx context.Context, url string) (*models.RemoteListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeLister) Origin() models.Origin { return models.OriginSpotify }
func (f *fakeLister) Name() string          { return "fake" }

type fakeResolver struct {
	unresolvable map[string]bool
}

func (f *fakeResolver) Resolve(ctx context.Context, ref models.RemoteTrack) ([]models.Candidate, error) {
	if f.unresolvable[ref.SourceID] {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnresolvable, ref.Title)
	}
	return []models.Candidate{{Handle: "h:" + ref.SourceID, Title: ref.Title, Artist: ref.Artist, Duration: ref.Duration, Score: 0.9}}, nil
}

type fakeFetcher struct {
	fail    map[string]bool
	names   map[string]string // handle to stored filename
	calls   atomic.Int64
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, c models.Candidate, dir, base string) (models.StoredFile, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.fail[c.Handle] {
		return models.StoredFile{}, fmt.Errorf("%w: status 403", shared.ErrFetchFailed)
	}

	name := shared.SanitizeFilename(base) + ".m4a"
	if n, ok := f.names[c.Handle]; ok {
		name = n
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio:"+c.Handle), 0o644); err != nil {
		return models.StoredFile{}, err
	}
	hash, err := shared.FileHash(path)
	if err != nil {
		return models.StoredFile{}, err
	}
	return models.StoredFile{Filename: name, Path: path, Size: int64(len(c.Handle) + 6), Hash: hash, Duration: 200}, nil
}

// gatedDownloader writes an mp3 for every handle, blocking on gate when it is set.
type gatedDownloader struct {
	calls   atomic.Int64
	started chan struct{}
	gate    chan struct{}
}

func (d *gatedDownloader) SupportsHandle(string) bool { return true }

func (d *gatedDownloader) Download(ctx context.Context, handle, tmpBase string) (string, error) {
	d.calls.Add(1)
	select {
	case d.started <- struct{}{}:
	default:
	}
	if d.gate != nil {
		<-d.gate
	}
	out := tmpBase + ".mp3"
	body := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 256)...)
	return out, os.WriteFile(out, body, 0o644)
}

type fakeRecorder struct {
	mu      sync.Mutex
	created []*models.SyncRun
	updates int
}

func (f *fakeRecorder) Create(run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	run.SetSequence(len(f.created))
	return nil
}

func (f *fakeRecorder) Update(run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

type fakeResolutions struct {
	mu     sync.Mutex
	stored map[string]string
}

func (f *fakeResolutions) Store(sourceID string, c models.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string]string{}
	}
	f.stored[sourceID] = c.Handle
	return nil
}

// conflictingStore touches the manifest before the first n commits so they see a newer file version.
type conflictingStore struct {
	*manifest.Store
	n       int
	commits int
}

func (c *conflictingStore) Commit(dir string, cs *manifest.ChangeSet) error {
	c.commits++
	if c.commits <= c.n {
		ts := time.Now().Add(time.Duration(c.commits) * time.Minute)
		if err := os.Chtimes(manifest.Path(dir), ts, ts); err != nil {
			return err
		}
	}
	return c.Store.Commit(dir, cs)
}

func remote(id, title string) models.RemoteTrack {
	return models.RemoteTrack{SourceID: models.OriginSpotify.SourceID(id), Title: title, Artist: "Artist", Duration: 200}
}

func synced(id, title string) models.Track {
	return models.Track{
		Filename: "Artist - " + title + ".m4a",
		Title:    title,
		Artist:   "Artist",
		Duration: 200,
		SourceID: models.OriginSpotify.SourceID(id),
	}
}

func listingOf(tracks ...models.RemoteTrack) *fakeLister {
	return &fakeLister{listing: &models.RemoteListing{Name: "Road Trip", Tracks: tracks}}
}

// newPlaylist creates a Spotify-backed playlist folder holding tracks, with their files on disk.
func newPlaylist(t *testing.T, store *manifest.Store, name string, tracks ...models.Track) string {
	t.Helper()

	m, err := store.Create(t.TempDir(), name, "", &models.Source{Type: models.OriginSpotify, URL: "https://open.spotify.com/playlist/PL1"})
	if err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	if len(tracks) == 0 {
		return m.Dir
	}

	mutations := make([]manifest.Mutation, 0, len(tracks))
	for _, tr := range tracks {
		mutations = append(mutations, manifest.AddTrack{Track: tr})
		if err := os.WriteFile(filepath.Join(m.Dir, tr.Filename), []byte(tr.Title), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cs, err := store.Stage(m, mutations...)
	if err != nil {
		t.Fatalf("failed to stage tracks: %v", err)
	}
	if err := store.Commit(m.Dir, cs); err != nil {
		t.Fatalf("failed to commit tracks: %v", err)
	}
	return m.Dir
}

func load(t *testing.T, dir string) *models.Playlist {
	t.Helper()
	m, err := manifest.NewStore(manifest.Options{}).Load(dir)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}
	return m.Playlist
}

func newEngine(store ManifestStore, lister services.Lister, resolver CandidateResolver, fetcher ContentFetcher) *PlaylistEngine {
	return NewPlaylistEngine(Config{Concurrency: 2, CommitRetries: 2}, Dependencies{
		Store:    store,
		Listers:  services.NewListers(lister),
		Resolver: resolver,
		Fetcher:  fetcher,
	})
}

func equalIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestPlaylistEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("adds new tracks and removes delisted ones", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip", synced("A", "A"), synced("B", "B"), synced("D", "D"))
		fetcher := &fakeFetcher{}
		recorder := &fakeRecorder{}
		resolutions := &fakeResolutions{}

		engine := NewPlaylistEngine(Config{Concurrency: 2}, Dependencies{
			Store:       store,
			Listers:     services.NewListers(listingOf(remote("A", "A"), remote("B", "B"), remote("C", "C"))),
			Resolver:    &fakeResolver{},
			Fetcher:     fetcher,
			Runs:        recorder,
			Resolutions: resolutions,
		})

		progress := make(chan ProgressUpdate, 64)
		report, err := engine.Sync(ctx, dir, progress)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}

		if !equalIDs(report.Added, "spotify:track:C") {
			t.Errorf("expected C added, got %v", report.Added)
		}
		if !equalIDs(report.Removed, "spotify:track:D") {
			t.Errorf("expected D removed, got %v", report.Removed)
		}
		if len(report.Updated) != 0 || len(report.Failed) != 0 {
			t.Errorf("expected no updates or failures, got %v %v", report.Updated, report.Failed)
		}

		pl := load(t, dir)
		if pl.TrackCount != 3 {
			t.Errorf("expected 3 tracks, got %d", pl.TrackCount)
		}
		if pl.TrackBySourceID("spotify:track:D") >= 0 {
			t.Error("D should no longer be in the manifest")
		}
		if i := pl.TrackBySourceID("spotify:track:C"); i < 0 || pl.Tracks[i].Filename != "Artist - C.m4a" {
			t.Errorf("expected C stored as 'Artist - C.m4a', got %+v", pl.Tracks)
		}
		if _, err := os.Stat(filepath.Join(dir, "Artist - D.m4a")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected D's file to be deleted, stat error = %v", err)
		}
		if pl.Source.LastSync == nil {
			t.Error("expected last_sync to be set")
		}

		if n := fetcher.calls.Load(); n != 1 {
			t.Errorf("expected 1 fetch, got %d", n)
		}
		if resolutions.stored["spotify:track:C"] != "h:spotify:track:C" {
			t.Errorf("expected resolution of C to be stored, got %v", resolutions.stored)
		}

		if len(recorder.created) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(recorder.created))
		}
		run := recorder.created[0]
		if run.State() != models.StateDone || run.Origin() != models.OriginSpotify {
			t.Errorf("expected done spotify run, got %s %s", run.State(), run.Origin())
		}
		if a, _, d, _ := run.Counts(); a != 1 || d != 1 {
			t.Errorf("expected counts 1 added 1 removed, got %d %d", a, d)
		}

		var last ProgressUpdate
		for len(progress) > 0 {
			last = <-progress
		}
		if !last.Done() || last.Phase != models.StateDone {
			t.Errorf("expected final update to be done, got %+v", last)
		}

		status, err := engine.Status(report.RunID)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status.State != models.StateDone || status.Report == nil {
			t.Errorf("expected done status with report, got %+v", status)
		}
	})

	t.Run("listing failure leaves manifest untouched", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip", synced("A", "A"))
		before, err := os.ReadFile(manifest.Path(dir))
		if err != nil {
			t.Fatal(err)
		}

		lister := &fakeLister{err: fmt.Errorf("%w: request timed out", shared.ErrServiceUnavailable)}
		engine := newEngine(store, lister, &fakeResolver{}, &fakeFetcher{})

		report, err := engine.Sync(ctx, dir, nil)
		if report != nil {
			t.Errorf("expected no report, got %+v", report)
		}
		var runErr *RunError
		if !errors.As(err, &runErr) {
			t.Fatalf("expected *RunError, got %v", err)
		}
		if runErr.Stage != models.StateFetchingRemoteListing {
			t.Errorf("expected failure while fetching listing, got %s", runErr.Stage)
		}
		if !errors.Is(err, shared.ErrRemoteUnavailable) || !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected remote unavailable error, got %v", err)
		}

		after, err := os.ReadFile(manifest.Path(dir))
		if err != nil {
			t.Fatal(err)
		}
		if string(before) != string(after) {
			t.Error("manifest should be unchanged")
		}
	})

	t.Run("unresolvable track is reported and the rest are added", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		resolver := &fakeResolver{unresolvable: map[string]bool{"spotify:track:B": true}}
		engine := newEngine(store, listingOf(remote("A", "A"), remote("B", "B"), remote("C", "C")), resolver, &fakeFetcher{})

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if len(report.Added) != 2 {
			t.Errorf("expected 2 added, got %v", report.Added)
		}
		if len(report.Failed) != 1 {
			t.Fatalf("expected 1 failure, got %v", report.Failed)
		}
		if f := report.Failed[0]; f.SourceID != "spotify:track:B" || f.Kind != models.FailureUnresolvable {
			t.Errorf("unexpected failure %+v", f)
		}
		if !report.Partial() {
			t.Error("report should be partial")
		}
		if pl := load(t, dir); pl.Source.LastSync == nil || pl.TrackCount != 2 {
			t.Errorf("expected 2 tracks and last_sync set, got %d", pl.TrackCount)
		}
	})

	t.Run("fetch failure is reported per track", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		fetcher := &fakeFetcher{fail: map[string]bool{"h:spotify:track:A": true}}
		engine := newEngine(store, listingOf(remote("A", "A"), remote("B", "B")), &fakeResolver{}, fetcher)

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if !equalIDs(report.Added, "spotify:track:B") {
			t.Errorf("expected B added, got %v", report.Added)
		}
		if len(report.Failed) != 1 || report.Failed[0].Kind != models.FailureFetchFailed {
			t.Errorf("expected one fetch failure, got %+v", report.Failed)
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		fetcher := &fakeFetcher{}
		rt := remote("A", "A")
		rt.Album, rt.Year, rt.TrackNumber = "Atlas", 2019, 4
		engine := newEngine(store, listingOf(rt, remote("B", "B")), &fakeResolver{}, fetcher)

		if _, err := engine.Sync(ctx, dir, nil); err != nil {
			t.Fatalf("first Sync() error = %v", err)
		}
		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("second Sync() error = %v", err)
		}
		if !report.Empty() {
			t.Errorf("expected empty report, got %+v", report)
		}
		if n := fetcher.calls.Load(); n != 2 {
			t.Errorf("expected 2 fetches across both runs, got %d", n)
		}

		pl := load(t, dir)
		i := pl.TrackBySourceID("spotify:track:A")
		if i < 0 || pl.Tracks[i].Album != "Atlas" || pl.Tracks[i].Year != 2019 {
			t.Errorf("expected remote metadata on A, got %+v", pl.Tracks)
		}
	})

	t.Run("manual tracks are kept", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		manual := models.Track{Filename: "demo.m4a", Title: "Demo", Duration: 90}
		dir := newPlaylist(t, store, "Road Trip", manual, synced("A", "A"))
		engine := newEngine(store, listingOf(remote("A", "A")), &fakeResolver{}, &fakeFetcher{})

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if len(report.Removed) != 0 {
			t.Errorf("expected nothing removed, got %v", report.Removed)
		}
		if pl := load(t, dir); pl.TrackByFilename("demo.m4a") < 0 {
			t.Error("manual track should remain")
		}
		if _, err := os.Stat(filepath.Join(dir, "demo.m4a")); err != nil {
			t.Errorf("manual track file should remain: %v", err)
		}
	})

	t.Run("changed metadata refreshes without refetching", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip", synced("A", "Old Title"))
		fetcher := &fakeFetcher{}
		rt := remote("A", "New Title")
		rt.Album = "Atlas"
		engine := newEngine(store, listingOf(rt), &fakeResolver{}, fetcher)

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if !equalIDs(report.Updated, "spotify:track:A") {
			t.Errorf("expected A updated, got %v", report.Updated)
		}
		if n := fetcher.calls.Load(); n != 0 {
			t.Errorf("expected no fetches, got %d", n)
		}

		pl := load(t, dir)
		tr := pl.Tracks[0]
		if tr.Title != "New Title" || tr.Album != "Atlas" || tr.Filename != "Artist - Old Title.m4a" {
			t.Errorf("unexpected refreshed track %+v", tr)
		}
	})

	t.Run("cancel stops dispatch and skips commit", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		fetcher := &fakeFetcher{started: make(chan struct{}, 1), gate: make(chan struct{})}
		engine := NewPlaylistEngine(Config{Concurrency: 1}, Dependencies{
			Store:    store,
			Listers:  services.NewListers(listingOf(remote("A", "A"), remote("B", "B"), remote("C", "C"))),
			Resolver: &fakeResolver{},
			Fetcher:  fetcher,
		})

		id := engine.Start(ctx, dir, nil)
		<-fetcher.started
		if err := engine.Cancel(id); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		close(fetcher.gate)

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		report, err := engine.Wait(waitCtx, id)
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if report != nil {
			t.Errorf("expected no report, got %+v", report)
		}
		if n := fetcher.calls.Load(); n != 1 {
			t.Errorf("expected exactly 1 fetch, got %d", n)
		}

		pl := load(t, dir)
		if pl.TrackCount != 0 || pl.Source.LastSync != nil {
			t.Errorf("cancelled run must not commit, got %d tracks", pl.TrackCount)
		}
		status, err := engine.Status(id)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status.State != models.StateCancelled {
			t.Errorf("expected cancelled state, got %s", status.State)
		}
	})

	t.Run("cancel then resync reuses stored file", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		dl := &gatedDownloader{started: make(chan struct{}, 1), gate: make(chan struct{})}
		fetcher := fetch.NewFetcher(dl, nil, fetch.Options{Policy: fetch.Policy{MaxAttempts: 1}})
		lister := listingOf(remote("A", "A"), remote("B", "B"), remote("C", "C"))
		engine := NewPlaylistEngine(Config{Concurrency: 1}, Dependencies{
			Store:    store,
			Listers:  services.NewListers(lister),
			Resolver: &fakeResolver{},
			Fetcher:  fetcher,
		})

		id := engine.Start(ctx, dir, nil)
		<-dl.started
		if err := engine.Cancel(id); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		close(dl.gate)
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := engine.Wait(waitCtx, id); !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "Artist - A.mp3")); err != nil {
			t.Fatalf("expected the cancelled run to leave A's file: %v", err)
		}

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if len(report.Added) != 3 || len(report.Failed) != 0 {
			t.Errorf("expected 3 added, got %v failed %v", report.Added, report.Failed)
		}
		if n := dl.calls.Load(); n != 3 {
			t.Errorf("expected 3 downloads across both runs, got %d", n)
		}

		pl := load(t, dir)
		if i := pl.TrackBySourceID("spotify:track:A"); i < 0 || pl.Tracks[i].Filename != "Artist - A.mp3" {
			t.Errorf("expected A stored as 'Artist - A.mp3', got %+v", pl.Tracks)
		}
		if _, err := os.Stat(filepath.Join(dir, "Artist - A_1.mp3")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected no duplicate of A, stat error = %v", err)
		}
	})

	t.Run("rejected addition is reported and its file discarded", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		fetcher := &fakeFetcher{names: map[string]string{"h:spotify:track:B": `Artist\B.m4a`}}
		engine := newEngine(store, listingOf(remote("A", "A"), remote("B", "B")), &fakeResolver{}, fetcher)

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if !equalIDs(report.Added, "spotify:track:A") {
			t.Errorf("expected A added, got %v", report.Added)
		}
		if len(report.Failed) != 1 {
			t.Fatalf("expected 1 failure, got %+v", report.Failed)
		}
		if f := report.Failed[0]; f.SourceID != "spotify:track:B" || f.Kind != models.FailureFetchFailed {
			t.Errorf("unexpected failure %+v", f)
		}
		if _, err := os.Stat(filepath.Join(dir, `Artist\B.m4a`)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected B's file to be removed, stat error = %v", err)
		}
	})

	t.Run("duplicate filename keeps the first track's file", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		engine := newEngine(store, listingOf(remote("A", "Same"), remote("B", "Same")), &fakeResolver{}, &fakeFetcher{})

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if len(report.Added) != 1 || len(report.Failed) != 1 {
			t.Fatalf("expected 1 added and 1 failed, got %v %+v", report.Added, report.Failed)
		}
		if _, err := os.Stat(filepath.Join(dir, "Artist - Same.m4a")); err != nil {
			t.Errorf("expected the added track's file to remain: %v", err)
		}
	})

	t.Run("folder without manifest", func(t *testing.T) {
		tests := []struct {
			name string
			dir  string
		}{
			{"empty folder", t.TempDir()},
			{"missing folder", filepath.Join(t.TempDir(), "gone")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				engine := newEngine(manifest.NewStore(manifest.Options{}), listingOf(), &fakeResolver{}, &fakeFetcher{})
				_, err := engine.Sync(ctx, tt.dir, nil)
				if !errors.Is(err, shared.ErrPlaylistNotFound) {
					t.Errorf("expected ErrPlaylistNotFound, got %v", err)
				}
				if _, err := os.Stat(filepath.Join(tt.dir, manifest.LockFilename)); !errors.Is(err, os.ErrNotExist) {
					t.Errorf("expected no lock file, stat error = %v", err)
				}
			})
		}
	})

	t.Run("locked folder", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		dir := newPlaylist(t, store, "Road Trip")
		lock, err := manifest.AcquireLock(dir)
		if err != nil {
			t.Fatalf("AcquireLock() error = %v", err)
		}
		defer lock.Release()

		engine := newEngine(store, listingOf(remote("A", "A")), &fakeResolver{}, &fakeFetcher{})
		if _, err := engine.Sync(ctx, dir, nil); !errors.Is(err, shared.ErrLocked) {
			t.Errorf("expected ErrLocked, got %v", err)
		}
	})

	t.Run("commit conflict is retried", func(t *testing.T) {
		store := &conflictingStore{Store: manifest.NewStore(manifest.Options{}), n: 1}
		dir := newPlaylist(t, store.Store, "Road Trip")
		engine := newEngine(store, listingOf(remote("A", "A")), &fakeResolver{}, &fakeFetcher{})

		report, err := engine.Sync(ctx, dir, nil)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if !equalIDs(report.Added, "spotify:track:A") {
			t.Errorf("expected A added, got %v", report.Added)
		}
		if store.commits != 2 {
			t.Errorf("expected 2 commit attempts, got %d", store.commits)
		}
	})

	t.Run("persistent conflict fails the run", func(t *testing.T) {
		store := &conflictingStore{Store: manifest.NewStore(manifest.Options{}), n: 100}
		dir := newPlaylist(t, store.Store, "Road Trip")
		engine := newEngine(store, listingOf(remote("A", "A")), &fakeResolver{}, &fakeFetcher{})

		_, err := engine.Sync(ctx, dir, nil)
		if !errors.Is(err, shared.ErrSyncIncomplete) || !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrSyncIncomplete wrapping ErrConflict, got %v", err)
		}
		var runErr *RunError
		if !errors.As(err, &runErr) || runErr.Stage != models.StateCommitting {
			t.Errorf("expected failure while committing, got %v", err)
		}
		if store.commits != 3 {
			t.Errorf("expected 3 commit attempts, got %d", store.commits)
		}
		if pl := load(t, dir); pl.TrackCount != 0 {
			t.Errorf("expected no tracks committed, got %d", pl.TrackCount)
		}
	})

	t.Run("playlist without source", func(t *testing.T) {
		store := manifest.NewStore(manifest.Options{})
		m, err := store.Create(t.TempDir(), "Local", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		engine := newEngine(store, listingOf(), &fakeResolver{}, &fakeFetcher{})
		if _, err := engine.Sync(ctx, m.Dir, nil); !errors.Is(err, shared.ErrUnsupportedOrigin) {
			t.Errorf("expected ErrUnsupportedOrigin, got %v", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		engine := newEngine(nil, listingOf(), &fakeResolver{}, &fakeFetcher{})
		if _, err := engine.Status("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("Status() expected ErrRunNotFound, got %v", err)
		}
		if err := engine.Cancel("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("Cancel() expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestSyncAll(t *testing.T) {
	store := manifest.NewStore(manifest.Options{})
	one := newPlaylist(t, store, "One")
	two := newPlaylist(t, store, "Two", synced("Z", "Z"))
	missing := filepath.Join(t.TempDir(), "missing")

	engine := newEngine(store, listingOf(remote("A", "A")), &fakeResolver{}, &fakeFetcher{})
	result := engine.SyncAll(context.Background(), []string{one, two, missing}, SyncAllOpts{NumWorkers: 2}, nil)

	if result.TotalPlaylists != 3 {
		t.Errorf("expected 3 playlists, got %d", result.TotalPlaylists)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("expected 2 succeeded and 1 failed, got %d and %d", result.Succeeded, result.Failed)
	}
	for _, res := range result.Results {
		switch res.Dir {
		case two:
			if res.Report == nil || !equalIDs(res.Report.Removed, "spotify:track:Z") {
				t.Errorf("expected Z removed from second playlist, got %+v", res.Report)
			}
		case missing:
			if res.Error == nil {
				t.Error("expected error for missing folder")
			}
		}
	}

	t.Run("cancelled context starts nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result := engine.SyncAll(ctx, []string{one, two}, SyncAllOpts{}, nil)
		if result.Failed != 2 {
			t.Errorf("expected 2 failures, got %d", result.Failed)
		}
	})
}

func TestDiff(t *testing.T) {
	pl := models.NewPlaylist("Road Trip", "", nil, time.Now())
	pl.Tracks = []models.Track{
		synced("A", "A"),
		synced("B", "Old"),
		{Filename: "demo.m4a", Title: "Demo"},
		synced("D", "D"),
	}

	got := diff(pl, []models.RemoteTrack{
		remote("A", "A"),
		remote("B", "New"),
		remote("C", "C"),
		remote("C", "C again"),
		{Title: "no id"},
	})

	if len(got.adds) != 1 || got.adds[0].SourceID != "spotify:track:C" {
		t.Errorf("expected C added once, got %+v", got.adds)
	}
	if len(got.refreshes) != 1 || got.refreshes[0].update.Title != "New" {
		t.Errorf("expected B refreshed, got %+v", got.refreshes)
	}
	if len(got.removals) != 1 || got.removals[0].SourceID != "spotify:track:D" {
		t.Errorf("expected D removed, got %+v", got.removals)
	}
	if got.unchanged != 1 {
		t.Errorf("expected 1 unchanged, got %d", got.unchanged)
	}
	if len(got.listed) != 3 {
		t.Errorf("expected 3 listed ids, got %d", len(got.listed))
	}

	want := PlanSummary{Add: 1, Refresh: 1, Remove: 1, Unchanged: 1}
	if s := got.summary(); s != want {
		t.Errorf("summary() = %+v, want %+v", s, want)
	}
}

func TestRefreshFor(t *testing.T) {
	base := models.Track{Filename: "a.m4a", Title: "Song", Artist: "Band", Album: "LP", Year: 2001, Duration: 180}

	tests := []struct {
		name    string
		remote  models.RemoteTrack
		changed bool
		want    manifest.UpdateTrack
	}{
		{
			name:    "identical",
			remote:  models.RemoteTrack{Title: "Song", Artist: "Band", Album: "LP", Year: 2001},
			changed: false,
			want:    manifest.UpdateTrack{Filename: "a.m4a"},
		},
		{
			name:    "empty remote values are ignored",
			remote:  models.RemoteTrack{Title: "Song"},
			changed: false,
			want:    manifest.UpdateTrack{Filename: "a.m4a"},
		},
		{
			name:    "duration differences are ignored",
			remote:  models.RemoteTrack{Title: "Song", Duration: 240},
			changed: false,
			want:    manifest.UpdateTrack{Filename: "a.m4a"},
		},
		{
			name:    "new album and genre",
			remote:  models.RemoteTrack{Title: "Song", Album: "LP (Deluxe)", Genre: "Rock"},
			changed: true,
			want:    manifest.UpdateTrack{Filename: "a.m4a", Album: "LP (Deluxe)", Genre: "Rock"},
		},
		{
			name:    "trimmed title",
			remote:  models.RemoteTrack{Title: "  Song 2 ", TrackNumber: 3},
			changed: true,
			want:    manifest.UpdateTrack{Filename: "a.m4a", Title: "Song 2", TrackNumber: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := refreshFor(base, tt.remote)
			if changed != tt.changed {
				t.Errorf("refreshFor() changed = %v, want %v", changed, tt.changed)
			}
			if got != tt.want {
				t.Errorf("refreshFor() = %+v, want %+v", got, tt.want)
			}
		})
	}

	t.Run("overlayRemote", func(t *testing.T) {
		tr := base
		overlayRemote(&tr, models.RemoteTrack{Title: "Song (Remastered)", Year: 2011})
		if tr.Title != "Song (Remastered)" || tr.Year != 2011 || tr.Album != "LP" {
			t.Errorf("unexpected overlay result %+v", tr)
		}
		if _, changed := refreshFor(tr, models.RemoteTrack{Title: "Song (Remastered)", Year: 2011}); changed {
			t.Error("overlaid track should need no refresh")
		}
	})
}
