package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/metadata"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate creates a playlist folder in the library root.
//
// With --url the playlist is backed by that remote playlist and can be synced.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: name", shared.ErrMissingArgument)
	}

	var source *models.Source
	if url := cmd.String("url"); url != "" {
		origin, err := models.DetectOrigin(url)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
		source = &models.Source{Type: origin, URL: url}
	}

	m, err := r.store.Create(r.root(), name, cmd.String("description"), source)
	if err != nil {
		return err
	}

	r.logger.Info("playlist created", "name", name, "dir", m.Dir)
	r.writePlain("✓ Created playlist %s\n", m.Playlist.Name)
	r.writePlain("  Folder: %s\n", m.Dir)
	if source != nil {
		r.writePlain("  Source: %s (%s)\n", source.URL, source.Type)
		r.writePlain("\nRun 'plsync sync \"%s\"' to download its tracks.\n", name)
	}
	return nil
}

// playlistSummary is one row of 'playlist list --json'.
type playlistSummary struct {
	Name     string     `json:"name"`
	Dir      string     `json:"dir"`
	Tracks   int        `json:"tracks"`
	Duration int        `json:"duration"`
	Source   string     `json:"source,omitempty"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

// PlaylistList lists the playlists of the library root.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	dirs, err := manifest.List(r.root())
	if err != nil {
		return err
	}

	summaries := make([]playlistSummary, 0, len(dirs))
	for _, dir := range dirs {
		m, err := r.store.Load(dir)
		if err != nil {
			r.logger.Warn("skipping playlist", "dir", dir, "error", err)
			continue
		}
		p := m.Playlist
		s := playlistSummary{Name: p.Name, Dir: dir, Tracks: p.TrackCount, Duration: p.TotalDuration}
		if p.Source != nil {
			s.Source = string(p.Source.Type)
			s.LastSync = p.Source.LastSync
		}
		summaries = append(summaries, s)
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	if len(summaries) == 0 {
		r.writePlain("No playlists in %s\n", r.root())
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Playlists in %s", r.root()))
	for _, s := range summaries {
		source := "local"
		if s.Source != "" {
			source = s.Source
		}
		r.writePlain("%-30s %4d tracks  %8s  %s\n", s.Name, s.Tracks, shared.FormatDuration(s.Duration), source)
	}
	return nil
}

// PlaylistShow prints a playlist and warns about tracks whose file is missing from its folder.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}

	m, err := r.store.Load(dir)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(m.Playlist, true)
	}

	if _, err := r.output.Write(formatter.ExportToText(m.Playlist)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if missing := manifest.MissingFiles(m.Playlist, dir); len(missing) > 0 {
		r.writePlain("\n%d track files are missing:\n", len(missing))
		for _, t := range missing {
			r.writePlain("  - %s\n", t.Filename)
		}
	}
	return nil
}

// PlaylistExport writes a playlist in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseExportFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}

	m, err := r.store.Load(dir)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(m.Playlist, dir, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "playlist", m.Playlist.Name, "format", format, "path", path)
	r.writePlain("✓ Exported %s to %s\n", m.Playlist.Name, path)
	return nil
}

// PlaylistRescan reconciles a playlist with its folder. Audio files the manifest does not list are
// added as manual tracks; tracks whose file is gone are dropped, manual ones included.
func (r *Runner) PlaylistRescan(ctx context.Context, cmd *cli.Command) error {
	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}
	lock, err := manifest.AcquireLock(dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	var added, forgotten []string
	err = r.commitMutations(dir, func(m *manifest.Manifest) ([]manifest.Mutation, error) {
		added, forgotten = nil, nil
		var muts []manifest.Mutation
		for _, t := range manifest.MissingFiles(m.Playlist, dir) {
			muts = append(muts, manifest.ForgetMissing{Filename: t.Filename})
			forgotten = append(forgotten, t.Filename)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read playlist folder: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			// Hidden files include the temporary files of running fetches.
			if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !shared.IsAudioFile(name) {
				continue
			}
			if m.Playlist.TrackByFilename(name) >= 0 {
				continue
			}
			t, err := r.trackFromFile(ctx, filepath.Join(dir, name))
			if err != nil {
				r.logger.Warn("skipping unreadable file", "file", name, "error", err)
				continue
			}
			muts = append(muts, manifest.AddTrack{Track: t})
			added = append(added, name)
		}
		return muts, nil
	})
	if err != nil {
		return err
	}

	if len(added) == 0 && len(forgotten) == 0 {
		r.writePlain("✓ %s is up to date with its folder\n", filepath.Base(dir))
		return nil
	}
	r.logger.Info("playlist rescanned", "playlist", dir, "added", len(added), "removed", len(forgotten))
	r.writePlain("✓ %s: %d added, %d removed\n", filepath.Base(dir), len(added), len(forgotten))
	for _, name := range added {
		r.writePlain("  + %s\n", name)
	}
	for _, name := range forgotten {
		r.writePlain("  - %s\n", name)
	}
	return nil
}

// PlaylistSettings prints the playback settings of a playlist after applying the ones given as flags.
func (r *Runner) PlaylistSettings(ctx context.Context, cmd *cli.Command) error {
	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}

	var settings models.Settings
	err = r.commitMutations(dir, func(m *manifest.Manifest) ([]manifest.Mutation, error) {
		settings = m.Playlist.Settings
		changed := false
		if cmd.IsSet("shuffle") {
			settings.ShuffleEnabled, changed = cmd.Bool("shuffle"), true
		}
		if cmd.IsSet("repeat") {
			settings.RepeatMode, changed = models.RepeatMode(cmd.String("repeat")), true
		}
		if cmd.IsSet("volume") {
			settings.Volume, changed = cmd.Float("volume"), true
		}
		if cmd.IsSet("equalizer") {
			settings.EqualizerPreset, changed = cmd.String("equalizer"), true
		}
		if !changed {
			return nil, nil
		}
		return []manifest.Mutation{manifest.UpdateSettings{Settings: settings}}, nil
	})
	if errors.Is(err, shared.ErrInvalidMutation) {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(settings, true)
	}
	r.writePlain("Shuffle:   %t\n", settings.ShuffleEnabled)
	r.writePlain("Repeat:    %s\n", settings.RepeatMode)
	r.writePlain("Volume:    %.2f\n", settings.Volume)
	r.writePlain("Equalizer: %s\n", settings.EqualizerPreset)
	return nil
}

// TrackPlayed records a completed playback of a track.
func (r *Runner) TrackPlayed(ctx context.Context, cmd *cli.Command) error {
	return r.recordPlayback(cmd, func(filename string) manifest.Mutation {
		return manifest.RecordPlay{Filename: filename, At: time.Now()}
	})
}

// TrackSkipped records a skipped track.
func (r *Runner) TrackSkipped(ctx context.Context, cmd *cli.Command) error {
	return r.recordPlayback(cmd, func(filename string) manifest.Mutation {
		return manifest.RecordSkip{Filename: filename}
	})
}

// TrackAdd adds an audio file to a playlist as a manual track, copying it into the playlist folder
// when it lives elsewhere. An existing file of the same name in the folder is never overwritten.
func (r *Runner) TrackAdd(ctx context.Context, cmd *cli.Command) error {
	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}
	src := cmd.StringArg("file")
	if src == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}
	if !shared.IsAudioFile(src) {
		return fmt.Errorf("%w: %s is not a supported audio file", shared.ErrInvalidArgument, src)
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	lock, err := manifest.AcquireLock(dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	dest := filepath.Join(dir, filepath.Base(src))
	copied := false
	if !samePath(src, dest) {
		if err := copyNew(src, dest); err != nil {
			return err
		}
		copied = true
	}

	track, err := r.trackFromFile(ctx, dest)
	if err == nil {
		err = r.commitMutations(dir, func(*manifest.Manifest) ([]manifest.Mutation, error) {
			return []manifest.Mutation{manifest.AddTrack{Track: track}}, nil
		})
	}
	if err != nil {
		if copied {
			os.Remove(dest)
		}
		return err
	}

	r.logger.Info("track added", "playlist", dir, "file", track.Filename)
	r.writePlain("✓ Added %s to %s\n", track.Title, filepath.Base(dir))
	return nil
}

// trackFromFile builds a manual track for the file at path, measuring its duration when the runner
// has a prober.
func (r *Runner) trackFromFile(ctx context.Context, path string) (models.Track, error) {
	duration := 0
	if r.prober != nil {
		d, err := r.prober.Probe(ctx, path)
		if err != nil {
			return models.Track{}, err
		}
		duration = d
	}

	t, err := metadata.TrackFromFile(path, duration)
	if errors.Is(err, metadata.ErrMalformedTags) {
		r.logger.Warn("unreadable tags, using filename", "file", t.Filename, "error", err)
		err = nil
	}
	return t, err
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// copyNew copies src to dest, failing with [shared.ErrDuplicateTrack] when dest exists.
func copyNew(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s already exists in the playlist folder", shared.ErrDuplicateTrack, filepath.Base(dest))
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// recordPlayback stages and commits one playback mutation.
func (r *Runner) recordPlayback(cmd *cli.Command, mutation func(filename string) manifest.Mutation) error {
	dir, err := r.playlistDir(cmd.StringArg("playlist"))
	if err != nil {
		return err
	}

	filename := cmd.StringArg("filename")
	if filename == "" {
		return fmt.Errorf("%w: filename", shared.ErrMissingArgument)
	}

	mut := mutation(filepath.Base(filename))
	err = r.commitMutations(dir, func(*manifest.Manifest) ([]manifest.Mutation, error) {
		return []manifest.Mutation{mut}, nil
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ %s: %s\n", filepath.Base(dir), mut)
	return nil
}

// commitMutations stages the mutations build derives from a fresh load and commits them, retrying
// once when a sync run commits in between. Nothing is written when build returns no mutations.
func (r *Runner) commitMutations(dir string, build func(m *manifest.Manifest) ([]manifest.Mutation, error)) error {
	for attempt := 0; ; attempt++ {
		m, err := r.store.Load(dir)
		if err != nil {
			return err
		}
		muts, err := build(m)
		if err != nil || len(muts) == 0 {
			return err
		}
		cs, err := r.store.Stage(m, muts...)
		if err != nil {
			return err
		}
		err = r.store.Commit(dir, cs)
		if err == nil {
			return nil
		}
		if attempt > 0 || !errors.Is(err, shared.ErrConflict) {
			return err
		}
		r.logger.Debug("manifest changed, retrying", "playlist", dir, "mutations", len(muts))
	}
}
