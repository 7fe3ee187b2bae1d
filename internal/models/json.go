package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Seconds is a track length that decodes from any JSON number. Manifests written by other tools
// store fractional seconds; the value is rounded to whole seconds.
type Seconds int

func (s *Seconds) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("duration must be a number: %w", err)
	}
	*s = Seconds(math.Round(f))
	return nil
}

// naiveLayouts are ISO 8601 forms without a zone offset, read in the local zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp decodes RFC 3339 times as well as zone-less ISO 8601 times. null and "" decode to the
// zero time.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	for _, layout := range naiveLayouts {
		if v, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is not RFC 3339 or ISO 8601", s)
}

func (t *Timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (p *Playlist) UnmarshalJSON(b []byte) error {
	type plain Playlist
	aux := struct {
		*plain
		CreatedDate   Timestamp `json:"created_date"`
		ModifiedDate  Timestamp `json:"modified_date"`
		TotalDuration Seconds   `json:"total_duration"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.CreatedDate = aux.CreatedDate.Time
	p.ModifiedDate = aux.ModifiedDate.Time
	p.TotalDuration = int(aux.TotalDuration)
	return nil
}

func (s *Source) UnmarshalJSON(b []byte) error {
	type plain Source
	aux := struct {
		*plain
		LastSync *Timestamp `json:"last_sync"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.LastSync = aux.LastSync.ptr()
	// Plain YouTube playlists are listed the same way as YouTube Music ones.
	if s.Type == "youtube" {
		s.Type = OriginYouTubeMusic
	}
	return nil
}

func (t *Track) UnmarshalJSON(b []byte) error {
	type plain Track
	aux := struct {
		*plain
		Duration       Seconds    `json:"duration"`
		DownloadedDate *Timestamp `json:"downloaded_date"`
		LastPlayed     *Timestamp `json:"last_played"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.Duration = int(aux.Duration)
	t.DownloadedDate = aux.DownloadedDate.ptr()
	t.LastPlayed = aux.LastPlayed.ptr()
	return nil
}
