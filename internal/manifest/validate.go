package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const (
	maxNameLength = 100
	durationSlack = 0.01
)

// number reads a JSON number, treating a missing key or null as absent.
func number(raw json.RawMessage) (float64, bool) {
	var f *float64
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil || f == nil {
		return 0, false
	}
	return *f, true
}

// Decode parses and validates manifest bytes.
//
// Required keys are checked on the raw document so a missing key is distinguishable from a zero
// value. Absent optional keys take their defaults; derived counts are filled in when absent and
// must match the track list when present. Fractional durations and zone-less timestamps are
// accepted and normalized to whole seconds and local time. Every failure wraps [shared.ErrCorruptManifest].
func Decode(data []byte) (*models.Playlist, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCorruptManifest, err)
	}
	for _, key := range []string{"name", "tracks"} {
		if _, ok := doc[key]; !ok {
			return nil, fmt.Errorf("%w: missing required field %q", shared.ErrCorruptManifest, key)
		}
	}

	var tracks []map[string]json.RawMessage
	if err := json.Unmarshal(doc["tracks"], &tracks); err != nil {
		return nil, fmt.Errorf("%w: tracks: %v", shared.ErrCorruptManifest, err)
	}
	if tracks == nil {
		return nil, fmt.Errorf("%w: tracks must be a list", shared.ErrCorruptManifest)
	}
	for i, t := range tracks {
		for _, key := range []string{"filename", "title"} {
			if _, ok := t[key]; !ok {
				return nil, fmt.Errorf("%w: track %d: missing required field %q", shared.ErrCorruptManifest, i, key)
			}
		}
	}

	var p models.Playlist
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCorruptManifest, err)
	}

	if _, ok := doc["settings"]; !ok {
		p.Settings = models.DefaultSettings()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	count := p.TrackCount
	_, hasCount := doc["track_count"]
	p.Recalculate()
	if hasCount && count != p.TrackCount {
		return nil, fmt.Errorf("%w: track_count %d does not match %d tracks", shared.ErrCorruptManifest, count, p.TrackCount)
	}

	// Durations may be fractional; compare the declared total against the unrounded track values.
	if declared, ok := number(doc["total_duration"]); ok {
		var sum float64
		for _, t := range tracks {
			d, _ := number(t["duration"])
			sum += d
		}
		if math.Abs(declared-sum) > durationSlack {
			return nil, fmt.Errorf("%w: total_duration %v does not match track durations (%v)", shared.ErrCorruptManifest, declared, sum)
		}
	}

	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCorruptManifest, err)
	}
	return &p, nil
}

// Validate checks p against the manifest schema: required fields, enumerated values, numeric
// ranges, uniqueness of filenames and source ids, and consistency of the derived counts.
func Validate(p *models.Playlist) error {
	if p == nil {
		return fmt.Errorf("%w: nil playlist", shared.ErrInvalidInput)
	}

	if n := utf8.RuneCountInString(p.Name); n < 1 || n > maxNameLength {
		return fmt.Errorf("name must be 1-%d characters, got %d", maxNameLength, n)
	}
	if p.Tracks == nil {
		return fmt.Errorf("tracks must be a list")
	}

	if !p.Settings.RepeatMode.Valid() {
		return fmt.Errorf("settings.repeat_mode %q is not one of none, track, playlist", p.Settings.RepeatMode)
	}
	if p.Settings.Volume < 0 || p.Settings.Volume > 1 {
		return fmt.Errorf("settings.volume %v is outside [0,1]", p.Settings.Volume)
	}

	if p.Source != nil && !p.Source.Type.Valid() {
		return fmt.Errorf("source.type %q is not a known origin", p.Source.Type)
	}

	filenames := make(map[string]struct{}, len(p.Tracks))
	sourceIDs := make(map[string]struct{}, len(p.Tracks))
	total := 0
	for i, t := range p.Tracks {
		if err := validateTrack(t); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		if _, dup := filenames[t.Filename]; dup {
			return fmt.Errorf("track %d: duplicate filename %q", i, t.Filename)
		}
		filenames[t.Filename] = struct{}{}
		if t.SourceID != "" {
			if _, dup := sourceIDs[t.SourceID]; dup {
				return fmt.Errorf("track %d: duplicate source_id %q", i, t.SourceID)
			}
			sourceIDs[t.SourceID] = struct{}{}
		}
		total += t.Duration
	}

	if p.TrackCount != len(p.Tracks) {
		return fmt.Errorf("track_count %d does not match %d tracks", p.TrackCount, len(p.Tracks))
	}
	if p.TotalDuration != total {
		return fmt.Errorf("total_duration %d does not match track durations (%d)", p.TotalDuration, total)
	}
	return nil
}

func validateTrack(t models.Track) error {
	switch {
	case strings.TrimSpace(t.Filename) == "":
		return fmt.Errorf("filename is required")
	case strings.ContainsAny(t.Filename, `/\`), t.Filename == ".", t.Filename == "..":
		return fmt.Errorf("filename %q must not contain a path", t.Filename)
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("title is required")
	case t.Duration < 0:
		return fmt.Errorf("duration must not be negative")
	case t.TrackNumber < 0, t.Year < 0:
		return fmt.Errorf("track_number and year must not be negative")
	case t.PlayCount < 0, t.SkipCount < 0:
		return fmt.Errorf("play_count and skip_count must not be negative")
	}
	return nil
}
