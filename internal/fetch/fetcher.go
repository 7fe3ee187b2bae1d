package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/metrics"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const tempPrefix = ".plsync-"

// Options configures a [Fetcher].
type Options struct {
	Policy    Policy
	Allocator *Allocator // shared between fetchers writing into the same folders
	Logger    *log.Logger
}

// Fetcher turns a candidate into a verified audio file inside a playlist folder.
type Fetcher struct {
	downloader Downloader
	prober     Prober
	policy     Policy
	alloc      *Allocator
	logger     *log.Logger
}

// NewFetcher creates a [Fetcher]. A nil prober only checks container signatures.
func NewFetcher(d Downloader, p Prober, opts Options) *Fetcher {
	if p == nil {
		p = sniffOnly{}
	}
	if opts.Allocator == nil {
		opts.Allocator = NewAllocator()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	return &Fetcher{
		downloader: d,
		prober:     p,
		policy:     opts.Policy.withDefaults(),
		alloc:      opts.Allocator,
		logger:     opts.Logger,
	}
}

// Allocator returns the filename allocator used by this fetcher.
func (f *Fetcher) Allocator() *Allocator { return f.alloc }

// Fetch downloads c into dir under a name derived from base.
//
// Bytes are written to a hidden temporary file inside dir. Only after the download and the
// integrity check succeed is a unique filename allocated and the file renamed into place, so a
// failed fetch leaves no file behind. Transient failures are retried per the fetcher's [Policy].
//
// A file already named base plus an audio extension that no manifest entry has reserved was moved
// into place by a run that never committed; it is verified and returned without downloading.
func (f *Fetcher) Fetch(ctx context.Context, c models.Candidate, dir, base string) (models.StoredFile, error) {
	logger := f.logger.With("handle", c.Handle)
	if stored, ok := f.adopt(ctx, c, dir, base); ok {
		metrics.FetchAttemptsTotal.WithLabelValues("reused").Inc()
		logger.Debug("reusing stored file", "file", stored.Filename)
		return stored, nil
	}

	start := time.Now()
	retry := NewRetry(f.policy)

	for {
		stored, err := f.attempt(ctx, c, dir, base)

		switch retry.Record(err) {
		case Succeeded:
			metrics.FetchAttemptsTotal.WithLabelValues("success").Inc()
			metrics.FetchDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
			logger.Debug("fetched", "file", stored.Filename, "attempts", retry.Attempt())
			return stored, nil
		case Retrying:
			metrics.FetchAttemptsTotal.WithLabelValues("retry").Inc()
			logger.Warn("fetch attempt failed, retrying", "attempt", retry.Attempt(), "delay", retry.NextDelay(), "error", err)
			if werr := wait(ctx, retry.NextDelay()); werr != nil {
				metrics.FetchDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
				return models.StoredFile{}, fmt.Errorf("%w: %s: %w", shared.ErrFetchFailed, c.Handle, werr)
			}
		default:
			metrics.FetchAttemptsTotal.WithLabelValues("failed").Inc()
			metrics.FetchDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
			logger.Warn("fetch failed", "attempts", retry.Attempt(), "error", err)
			return models.StoredFile{}, fmt.Errorf("%w: %s after %d attempt(s): %w", shared.ErrFetchFailed, c.Handle, retry.Attempt(), err)
		}
	}
}

func (f *Fetcher) adopt(ctx context.Context, c models.Candidate, dir, base string) (models.StoredFile, bool) {
	name, ok := f.alloc.Claim(dir, base)
	if !ok {
		return models.StoredFile{}, false
	}
	path := filepath.Join(dir, name)
	stored, err := f.verify(ctx, c, path)
	if err != nil {
		// The name stays reserved, so the download below is placed next to it.
		f.logger.Warn("ignoring unusable file", "file", name, "error", err)
		return models.StoredFile{}, false
	}
	stored.Filename = name
	stored.Path = path
	return stored, true
}

func (f *Fetcher) attempt(ctx context.Context, c models.Candidate, dir, base string) (stored models.StoredFile, err error) {
	tmpBase := filepath.Join(dir, tempPrefix+shared.GenerateID())
	defer func() {
		if err != nil {
			removeTemp(tmpBase)
		}
	}()

	tmp, err := f.downloader.Download(ctx, c.Handle, tmpBase)
	if err != nil {
		return stored, err
	}
	if stored, err = f.verify(ctx, c, tmp); err != nil {
		return stored, err
	}

	name, err := f.alloc.Place(dir, base, strings.ToLower(filepath.Ext(tmp)), tmp)
	if err != nil {
		return stored, err
	}
	stored.Filename = name
	stored.Path = filepath.Join(dir, name)
	return stored, nil
}

// verify checks the file at path is non-empty playable audio of known length and hashes it.
// The candidate's advertised duration stands in when the prober cannot measure one.
func (f *Fetcher) verify(ctx context.Context, c models.Candidate, path string) (models.StoredFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.StoredFile{}, err
	}
	if info.Size() == 0 {
		return models.StoredFile{}, fmt.Errorf("%w: empty file", shared.ErrIntegrity)
	}

	duration, err := f.prober.Probe(ctx, path)
	if err != nil {
		return models.StoredFile{}, err
	}
	if duration <= 0 {
		duration = c.Duration
	}
	if duration <= 0 {
		return models.StoredFile{}, fmt.Errorf("%w: duration is unknown", shared.ErrIntegrity)
	}

	hash, err := shared.FileHash(path)
	if err != nil {
		return models.StoredFile{}, err
	}
	return models.StoredFile{Size: info.Size(), Hash: hash, Duration: duration}, nil
}

// removeTemp deletes every file written under tmpBase.
func removeTemp(tmpBase string) {
	matches, _ := filepath.Glob(tmpBase + "*")
	for _, m := range matches {
		os.Remove(m)
	}
}

// RemoveStaleTemp deletes temporary files left in dir by an interrupted process.
func RemoveStaleTemp(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// IsDiskFull reports whether err was caused by a full device.
func IsDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

type sniffOnly struct{}

func (sniffOnly) Probe(_ context.Context, path string) (int, error) {
	return 0, SniffContainer(path)
}

// Allocator hands out unique filenames within playlist folders.
//
// Allocation and the rename into place happen under one lock per folder, so concurrent fetches
// into the same folder never pick the same name. Different folders do not contend.
type Allocator struct {
	mu      sync.Mutex
	folders map[string]*folder
}

type folder struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{folders: map[string]*folder{}}
}

func (a *Allocator) folder(dir string) *folder {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := filepath.Clean(dir)
	fo, ok := a.folders[key]
	if !ok {
		fo = &folder{reserved: map[string]struct{}{}}
		a.folders[key] = fo
	}
	return fo
}

// Reserve marks names as taken in dir even when no file exists, e.g. manifest entries whose file is missing.
func (a *Allocator) Reserve(dir string, names ...string) {
	fo := a.folder(dir)
	fo.mu.Lock()
	defer fo.mu.Unlock()
	for _, n := range names {
		fo.reserved[n] = struct{}{}
	}
}

// Release forgets all reservations for dir.
func (a *Allocator) Release(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.folders, filepath.Clean(dir))
}

// Claim reserves an existing, unreserved regular file in dir named base plus one of
// [shared.AudioExtensions] and returns its name. It reports false when there is none.
func (a *Allocator) Claim(dir, base string) (string, bool) {
	fo := a.folder(dir)
	fo.mu.Lock()
	defer fo.mu.Unlock()

	base = shared.SanitizeFilename(base)
	for _, ext := range shared.AudioExtensions {
		name := base + ext
		if _, ok := fo.reserved[name]; ok {
			continue
		}
		info, err := os.Lstat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		fo.reserved[name] = struct{}{}
		return name, true
	}
	return "", false
}

// Place renames src into dir as base+ext, or base_1+ext, base_2+ext ... when taken, and returns the chosen name.
func (a *Allocator) Place(dir, base, ext, src string) (string, error) {
	fo := a.folder(dir)
	fo.mu.Lock()
	defer fo.mu.Unlock()

	base = shared.SanitizeFilename(base)
	for i := 0; ; i++ {
		name := base + ext
		if i > 0 {
			name = base + "_" + strconv.Itoa(i) + ext
		}
		if _, ok := fo.reserved[name]; ok {
			continue
		}
		if _, err := os.Lstat(filepath.Join(dir, name)); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		if err := os.Rename(src, filepath.Join(dir, name)); err != nil {
			return "", fmt.Errorf("failed to move file into place: %w", err)
		}
		fo.reserved[name] = struct{}{}
		return name, nil
	}
}
