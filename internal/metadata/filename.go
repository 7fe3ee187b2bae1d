package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "01. Artist - Title"
	numberedArtistTitle = regexp.MustCompile(`^(\d+)[.\-\s]+(.+?)\s*-\s*(.+)$`)

	// "Artist - Title"
	artistTitle = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)

	// "01. Title"
	numberedTitle = regexp.MustCompile(`^(\d+)[.\-\s]+(.+)$`)
)

// ParseFilename derives title, artist and track number from common filename layouts.
//
// The extension is ignored. Unmatched names yield the stem as title.
func ParseFilename(name string) Fields {
	s := stem(name)
	out := Fields{Title: s}

	if m := numberedArtistTitle.FindStringSubmatch(s); m != nil {
		out.TrackNumber, _ = strconv.Atoi(m[1])
		out.Artist = strings.TrimSpace(m[2])
		out.Title = strings.TrimSpace(m[3])
		return out
	}
	if m := artistTitle.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.TrackNumber = n
			out.Title = strings.TrimSpace(m[2])
			return out
		}
		out.Artist = strings.TrimSpace(m[1])
		out.Title = strings.TrimSpace(m[2])
		return out
	}
	if m := numberedTitle.FindStringSubmatch(s); m != nil {
		out.TrackNumber, _ = strconv.Atoi(m[1])
		out.Title = strings.TrimSpace(m[2])
	}
	return out
}

// TrackFilename builds the base filename (without extension) for a downloaded track.
func TrackFilename(artist, title string) string {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" {
		return title
	}
	return artist + " - " + title
}
