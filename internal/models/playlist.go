package models

import (
	"time"
)

// ManifestFilename is the name of the manifest file inside every playlist folder.
const ManifestFilename = "playlist.json"

// RepeatMode is the playback repeat setting of a playlist.
type RepeatMode string

const (
	RepeatNone     RepeatMode = "none"
	RepeatTrack    RepeatMode = "track"
	RepeatPlaylist RepeatMode = "playlist"
)

// Valid reports whether r is one of the known repeat modes.
func (r RepeatMode) Valid() bool {
	switch r {
	case RepeatNone, RepeatTrack, RepeatPlaylist:
		return true
	}
	return false
}

// Playlist is the manifest of one folder-backed playlist (playlist.json).
//
// TrackCount and TotalDuration are derived from Tracks; call [Playlist.Recalculate] after
// editing the track list instead of setting them directly.
type Playlist struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreatedDate   time.Time `json:"created_date"`
	ModifiedDate  time.Time `json:"modified_date"`
	CoverImage    string    `json:"cover_image,omitempty"`
	TotalDuration int       `json:"total_duration"`
	TrackCount    int       `json:"track_count"`
	Tags          []string  `json:"tags"`
	Source        *Source   `json:"source,omitempty"`
	Settings      Settings  `json:"settings"`
	Tracks        []Track   `json:"tracks"`
}

// Source records where a synced playlist comes from.
type Source struct {
	Type     Origin     `json:"type"`
	URL      string     `json:"url"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

// Settings holds per-playlist playback settings.
type Settings struct {
	ShuffleEnabled  bool       `json:"shuffle_enabled"`
	RepeatMode      RepeatMode `json:"repeat_mode"`
	Volume          float64    `json:"volume"`
	EqualizerPreset string     `json:"equalizer_preset"`
}

// Track is one audio file inside a playlist.
//
// An empty SourceID marks a manually added track.
type Track struct {
	Filename       string     `json:"filename"`
	Title          string     `json:"title"`
	Artist         string     `json:"artist,omitempty"`
	Album          string     `json:"album,omitempty"`
	Duration       int        `json:"duration"`
	TrackNumber    int        `json:"track_number,omitempty"`
	Year           int        `json:"year,omitempty"`
	Genre          string     `json:"genre,omitempty"`
	DownloadedDate *time.Time `json:"downloaded_date,omitempty"`
	SourceID       string     `json:"source_id,omitempty"`
	FileHash       string     `json:"file_hash,omitempty"`
	PlayCount      int        `json:"play_count"`
	SkipCount      int        `json:"skip_count"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
}

// IsManual reports whether the track was added by hand rather than by a sync run.
func (t Track) IsManual() bool {
	return t.SourceID == ""
}

// DefaultSettings returns the settings given to newly created playlists.
func DefaultSettings() Settings {
	return Settings{
		ShuffleEnabled:  false,
		RepeatMode:      RepeatNone,
		Volume:          0.8,
		EqualizerPreset: "default",
	}
}

// NewPlaylist builds an empty manifest with default settings.
func NewPlaylist(name, description string, source *Source, now time.Time) *Playlist {
	return &Playlist{
		Name:         name,
		Description:  description,
		CreatedDate:  now,
		ModifiedDate: now,
		Tags:         []string{},
		Source:       source,
		Settings:     DefaultSettings(),
		Tracks:       []Track{},
	}
}

// Recalculate recomputes TrackCount and TotalDuration from Tracks.
func (p *Playlist) Recalculate() {
	total := 0
	for _, t := range p.Tracks {
		total += t.Duration
	}
	p.TrackCount = len(p.Tracks)
	p.TotalDuration = total
}

// TrackBySourceID returns the index of the track with the given source id, or -1.
func (p *Playlist) TrackBySourceID(sourceID string) int {
	if sourceID == "" {
		return -1
	}
	for i, t := range p.Tracks {
		if t.SourceID == sourceID {
			return i
		}
	}
	return -1
}

// TrackByFilename returns the index of the track stored under filename, or -1.
func (p *Playlist) TrackByFilename(filename string) int {
	for i, t := range p.Tracks {
		if t.Filename == filename {
			return i
		}
	}
	return -1
}

// SourceIDs returns the set of non-empty source ids in the playlist.
func (p *Playlist) SourceIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.SourceID != "" {
			ids[t.SourceID] = struct{}{}
		}
	}
	return ids
}

// Clone returns a deep copy so staged mutations never alias a cached manifest.
func (p *Playlist) Clone() *Playlist {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.Tracks = make([]Track, len(p.Tracks))
	for i, t := range p.Tracks {
		c.Tracks[i] = t.clone()
	}
	if p.Source != nil {
		src := *p.Source
		src.LastSync = cloneTime(p.Source.LastSync)
		c.Source = &src
	}
	return &c
}

func (t Track) clone() Track {
	t.DownloadedDate = cloneTime(t.DownloadedDate)
	t.LastPlayed = cloneTime(t.LastPlayed)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
