package metadata

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
)

const (
	frameTrack  = "TRCK"
	frameLength = "TLEN"
)

// ReadTags reads the embedded ID3 tags of an mp3 file. Other containers yield empty fields.
func ReadTags(path string) (Fields, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return Fields{}, nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %s: %v", ErrMalformedTags, filepath.Base(path), err)
	}
	defer tag.Close()

	f := Fields{
		Title:       strings.TrimSpace(tag.Title()),
		Artist:      strings.TrimSpace(tag.Artist()),
		Album:       strings.TrimSpace(tag.Album()),
		Genre:       strings.TrimSpace(tag.Genre()),
		Year:        leadingInt(tag.Year(), 4),
		TrackNumber: leadingInt(strings.SplitN(tag.GetTextFrame(frameTrack).Text, "/", 2)[0], 0),
	}
	if ms := leadingInt(tag.GetTextFrame(frameLength).Text, 0); ms > 0 {
		f.Duration = ms / 1000
	}
	return f, nil
}

// WriteTags stores f as ID3 tags on an mp3 file. Other containers are left untouched.
func WriteTags(path string, f Fields) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open tags: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(f.Title)
	if f.Artist != "" {
		tag.SetArtist(f.Artist)
	}
	if f.Album != "" {
		tag.SetAlbum(f.Album)
	}
	if f.Genre != "" {
		tag.SetGenre(f.Genre)
	}
	if f.Year > 0 {
		tag.SetYear(strconv.Itoa(f.Year))
	}
	if f.TrackNumber > 0 {
		tag.DeleteFrames(frameTrack)
		tag.AddTextFrame(frameTrack, tag.DefaultEncoding(), strconv.Itoa(f.TrackNumber))
	}
	if f.Duration > 0 {
		tag.DeleteFrames(frameLength)
		tag.AddTextFrame(frameLength, tag.DefaultEncoding(), strconv.Itoa(f.Duration*1000))
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}

// leadingInt parses the leading digits of s, reading at most n digits when n > 0.
func leadingInt(s string, n int) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		if n > 0 && end == n {
			break
		}
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}
