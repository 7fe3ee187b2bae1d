package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Mutation is one staged change to a manifest. The set of mutations is closed; see the types below.
type Mutation interface {
	apply(cs *ChangeSet) error
	String() string
}

// AddTrack appends a track. Its filename and source id must not already be in the playlist.
type AddTrack struct {
	Track models.Track
}

// UpdateTrack changes metadata of the track stored under Filename. Zero values leave a field unchanged.
type UpdateTrack struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	Genre       string
	Duration    int
	TrackNumber int
	Year        int
	FileHash    string
}

// RemoveTrack removes a synced track that is absent from a complete remote listing.
//
// Listed must hold every source id of that listing. Manually added tracks are never removed.
type RemoveTrack struct {
	Filename string
	Listed   map[string]struct{}
}

// ForgetMissing drops a track whose file is no longer in the playlist folder. It applies to manual
// tracks as well and deletes nothing.
type ForgetMissing struct {
	Filename string
}

// UpdateSettings replaces the playlist settings.
type UpdateSettings struct {
	Settings models.Settings
}

// RecordPlay increments the play count of a track and sets its last played time.
type RecordPlay struct {
	Filename string
	At       time.Time
}

// RecordSkip increments the skip count of a track.
type RecordSkip struct {
	Filename string
}

// MarkSynced sets source.last_sync. Only completed sync runs stage it.
type MarkSynced struct {
	At time.Time
}

// SetCover points the playlist at a cover image inside its folder.
type SetCover struct {
	Filename string
}

func (m AddTrack) String() string       { return "add " + m.Track.Filename }
func (m UpdateTrack) String() string    { return "update " + m.Filename }
func (m RemoveTrack) String() string    { return "remove " + m.Filename }
func (m ForgetMissing) String() string  { return "forget " + m.Filename }
func (m UpdateSettings) String() string { return "update settings" }
func (m RecordPlay) String() string     { return "play " + m.Filename }
func (m RecordSkip) String() string     { return "skip " + m.Filename }
func (m MarkSynced) String() string     { return "mark synced" }
func (m SetCover) String() string       { return "set cover " + m.Filename }

func (m AddTrack) apply(cs *ChangeSet) error {
	t := m.Track
	if err := validateTrack(t); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidMutation, err)
	}
	p := cs.result
	if p.TrackByFilename(t.Filename) >= 0 {
		return fmt.Errorf("%w: filename %q", shared.ErrDuplicateTrack, t.Filename)
	}
	if p.TrackBySourceID(t.SourceID) >= 0 {
		return fmt.Errorf("%w: source_id %q", shared.ErrDuplicateTrack, t.SourceID)
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

func (m UpdateTrack) apply(cs *ChangeSet) error {
	i := cs.result.TrackByFilename(m.Filename)
	if i < 0 {
		return fmt.Errorf("%w: %q", shared.ErrTrackNotFound, m.Filename)
	}
	if m.Duration < 0 || m.TrackNumber < 0 || m.Year < 0 {
		return fmt.Errorf("%w: negative value", shared.ErrInvalidMutation)
	}
	t := &cs.result.Tracks[i]
	setString(&t.Title, m.Title)
	setString(&t.Artist, m.Artist)
	setString(&t.Album, m.Album)
	setString(&t.Genre, m.Genre)
	setString(&t.FileHash, m.FileHash)
	setInt(&t.Duration, m.Duration)
	setInt(&t.TrackNumber, m.TrackNumber)
	setInt(&t.Year, m.Year)
	return nil
}

func (m RemoveTrack) apply(cs *ChangeSet) error {
	i := cs.result.TrackByFilename(m.Filename)
	if i < 0 {
		return fmt.Errorf("%w: %q", shared.ErrTrackNotFound, m.Filename)
	}
	t := cs.result.Tracks[i]
	switch {
	case t.IsManual():
		return fmt.Errorf("%w: %q", shared.ErrManualTrack, m.Filename)
	case m.Listed == nil:
		return fmt.Errorf("%w: removal requires the complete remote listing", shared.ErrInvalidMutation)
	}
	if _, ok := m.Listed[t.SourceID]; ok {
		return fmt.Errorf("%w: %s", shared.ErrStillListed, t.SourceID)
	}
	cs.result.Tracks = append(cs.result.Tracks[:i:i], cs.result.Tracks[i+1:]...)
	cs.removed = append(cs.removed, t.Filename)
	return nil
}

func (m ForgetMissing) apply(cs *ChangeSet) error {
	i := cs.result.TrackByFilename(m.Filename)
	if i < 0 {
		return fmt.Errorf("%w: %q", shared.ErrTrackNotFound, m.Filename)
	}
	if _, err := os.Stat(filepath.Join(cs.dir, m.Filename)); err == nil {
		return fmt.Errorf("%w: file %q is still present", shared.ErrInvalidMutation, m.Filename)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cs.result.Tracks = append(cs.result.Tracks[:i:i], cs.result.Tracks[i+1:]...)
	return nil
}

func (m UpdateSettings) apply(cs *ChangeSet) error {
	s := m.Settings
	if !s.RepeatMode.Valid() {
		return fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidMutation, s.RepeatMode)
	}
	if s.Volume < 0 || s.Volume > 1 {
		return fmt.Errorf("%w: volume %v outside [0,1]", shared.ErrInvalidMutation, s.Volume)
	}
	cs.result.Settings = s
	return nil
}

func (m RecordPlay) apply(cs *ChangeSet) error {
	i := cs.result.TrackByFilename(m.Filename)
	if i < 0 {
		return fmt.Errorf("%w: %q", shared.ErrTrackNotFound, m.Filename)
	}
	at := m.At
	if at.IsZero() {
		at = cs.now
	}
	t := &cs.result.Tracks[i]
	t.PlayCount++
	t.LastPlayed = &at
	return nil
}

func (m RecordSkip) apply(cs *ChangeSet) error {
	i := cs.result.TrackByFilename(m.Filename)
	if i < 0 {
		return fmt.Errorf("%w: %q", shared.ErrTrackNotFound, m.Filename)
	}
	cs.result.Tracks[i].SkipCount++
	return nil
}

func (m MarkSynced) apply(cs *ChangeSet) error {
	if cs.result.Source == nil {
		return fmt.Errorf("%w: playlist has no remote source", shared.ErrInvalidMutation)
	}
	at := m.At
	cs.result.Source.LastSync = &at
	return nil
}

func (m SetCover) apply(cs *ChangeSet) error {
	if m.Filename == "" {
		return fmt.Errorf("%w: empty cover filename", shared.ErrInvalidMutation)
	}
	cs.result.CoverImage = m.Filename
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// ChangeSet is the pending result of staged mutations against one loaded manifest.
//
// It remembers the on-disk version it was staged from; [Store.Commit] refuses it once the file changed.
type ChangeSet struct {
	dir       string
	base      Version
	result    *models.Playlist
	mutations []Mutation
	removed   []string
	now       time.Time
}

// Stage applies m to the pending playlist. A rejected mutation leaves the change set as it was.
func (cs *ChangeSet) Stage(m Mutation) error {
	snapshot := cs.result.Clone()
	removed := len(cs.removed)
	if err := m.apply(cs); err != nil {
		cs.result = snapshot
		cs.removed = cs.removed[:removed]
		return err
	}
	cs.result.Recalculate()
	cs.mutations = append(cs.mutations, m)
	return nil
}

// Len returns the number of staged mutations.
func (cs *ChangeSet) Len() int { return len(cs.mutations) }

// Mutations returns the staged mutations in order.
func (cs *ChangeSet) Mutations() []Mutation { return append([]Mutation(nil), cs.mutations...) }

// Playlist returns a copy of the pending playlist.
func (cs *ChangeSet) Playlist() *models.Playlist { return cs.result.Clone() }

// Base returns the on-disk version the change set was staged from.
func (cs *ChangeSet) Base() Version { return cs.base }
