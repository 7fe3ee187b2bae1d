package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/metrics"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// BackupSuffix is appended to the manifest filename for the copy of the previous manifest.
const BackupSuffix = ".bak"

// Version identifies one on-disk state of a manifest file.
type Version struct {
	ModTime time.Time
	Size    int64
}

func versionOf(info os.FileInfo) Version {
	return Version{ModTime: info.ModTime(), Size: info.Size()}
}

// Equal reports whether v and o describe the same file state.
func (v Version) Equal(o Version) bool {
	return v.ModTime.Equal(o.ModTime) && v.Size == o.Size
}

// Manifest is a loaded playlist with the folder and file version it was read from.
type Manifest struct {
	Dir      string
	Playlist *models.Playlist
	Version  Version
}

type cached struct {
	version  Version
	playlist *models.Playlist
}

// Options configures a [Store].
type Options struct {
	Logger *log.Logger
	Clock  func() time.Time
}

// Store is the only writer of playlist manifests.
//
// Loaded manifests are cached by folder path and file version; a cache entry is dropped on every
// successful commit. Commits to one path are serialized within the process.
type Store struct {
	mu      sync.Mutex
	cache   map[string]cached
	commits map[string]*sync.Mutex
	logger  *log.Logger
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		cache:   map[string]cached{},
		commits: map[string]*sync.Mutex{},
		logger:  opts.Logger,
		now:     opts.Clock,
	}
}

// Path returns the manifest file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, models.ManifestFilename)
}

// Load reads and validates the manifest in dir.
//
// A schema violation is reported as [shared.ErrCorruptManifest] and never repaired. The returned
// playlist is a private copy; mutate it only through [Store.Stage].
func (s *Store) Load(dir string) (*Manifest, error) {
	dir = filepath.Clean(dir)
	path := Path(dir)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	version := versionOf(info)

	s.mu.Lock()
	entry, ok := s.cache[dir]
	s.mu.Unlock()
	if ok && entry.version.Equal(version) {
		metrics.ManifestCacheTotal.WithLabelValues("hit").Inc()
		return &Manifest{Dir: dir, Playlist: entry.playlist.Clone(), Version: version}, nil
	}
	metrics.ManifestCacheTotal.WithLabelValues("miss").Inc()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		s.logger.Error("manifest failed validation", "path", path, "error", err)
		return nil, err
	}

	// version was taken before the read, so a concurrent write makes the next commit conflict.
	s.mu.Lock()
	s.cache[dir] = cached{version: version, playlist: p.Clone()}
	s.mu.Unlock()

	return &Manifest{Dir: dir, Playlist: p, Version: version}, nil
}

// Stage applies mutations to a copy of m's playlist and returns the pending change set.
// Nothing is written until [Store.Commit].
func (s *Store) Stage(m *Manifest, mutations ...Mutation) (*ChangeSet, error) {
	if m == nil || m.Playlist == nil {
		return nil, fmt.Errorf("%w: nil manifest", shared.ErrInvalidInput)
	}
	cs := &ChangeSet{
		dir:    m.Dir,
		base:   m.Version,
		result: m.Playlist.Clone(),
		now:    s.now(),
	}
	for _, mut := range mutations {
		if err := cs.Stage(mut); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Commit atomically replaces the manifest in dir with the change set's playlist.
//
// When the manifest changed on disk since the change set's base version, Commit returns
// [shared.ErrConflict] without writing anything. Otherwise the previous manifest is copied to
// playlist.json.bak, the new one is written to a temporary file in dir and renamed over
// playlist.json. Files of removed tracks are deleted afterwards.
func (s *Store) Commit(dir string, cs *ChangeSet) error {
	if cs == nil {
		return fmt.Errorf("%w: nil change set", shared.ErrInvalidInput)
	}
	dir = filepath.Clean(dir)
	if cs.dir != "" && filepath.Clean(cs.dir) != dir {
		return fmt.Errorf("%w: change set was staged for %s", shared.ErrInvalidInput, cs.dir)
	}

	lock := s.commitLock(dir)
	lock.Lock()
	defer lock.Unlock()

	path := Path(dir)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat manifest: %w", err)
	}
	if !versionOf(info).Equal(cs.base) {
		metrics.ManifestCommitsTotal.WithLabelValues("conflict").Inc()
		return fmt.Errorf("%w: %s", shared.ErrConflict, path)
	}

	p := cs.result.Clone()
	p.ModifiedDate = s.now()
	p.Recalculate()
	if err := Validate(p); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidMutation, err)
	}

	if err := backup(path); err != nil {
		s.logger.Warn("failed to back up manifest", "path", path, "error", err)
	}
	if err := writeAtomic(dir, p); err != nil {
		metrics.ManifestCommitsTotal.WithLabelValues("error").Inc()
		return err
	}

	s.invalidate(dir)
	metrics.ManifestCommitsTotal.WithLabelValues("ok").Inc()

	for _, name := range cs.removed {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to delete removed track file", "file", name, "error", err)
		}
	}
	s.logger.Debug("manifest committed", "path", path, "mutations", cs.Len())
	return nil
}

func (s *Store) invalidate(dir string) {
	s.mu.Lock()
	delete(s.cache, dir)
	s.mu.Unlock()
}

func (s *Store) commitLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.commits[dir]
	if !ok {
		l = &sync.Mutex{}
		s.commits[dir] = l
	}
	return l
}

// Create makes a new playlist folder under root and writes its initial manifest.
//
// The folder name is the sanitized playlist name, suffixed _1, _2 ... when taken.
func (s *Store) Create(root, name, description string, source *models.Source) (*Manifest, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library root: %w", err)
	}

	p := models.NewPlaylist(name, description, source, s.now())
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	base := shared.SanitizeFilename(name)
	var dir string
	for i := 0; ; i++ {
		dir = filepath.Join(root, base)
		if i > 0 {
			dir = filepath.Join(root, base+"_"+strconv.Itoa(i))
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create playlist folder: %w", err)
		}
	}

	if err := writeAtomic(dir, p); err != nil {
		return nil, err
	}
	return s.Load(dir)
}

// List returns the playlist folders directly under root, sorted by name.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read library root: %w", err)
	}

	dirs := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(Path(dir)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// MissingFiles returns the tracks of p whose audio file does not exist in dir.
func MissingFiles(p *models.Playlist, dir string) []models.Track {
	missing := []models.Track{}
	for _, t := range p.Tracks {
		if _, err := os.Stat(filepath.Join(dir, t.Filename)); err != nil {
			missing = append(missing, t)
		}
	}
	return missing
}

func backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path+BackupSuffix, data, 0o644)
}

// writeAtomic serializes p into a temporary file in dir and renames it over the manifest.
func writeAtomic(dir string, p *models.Playlist) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".playlist-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, Path(dir)); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}
