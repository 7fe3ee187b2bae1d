package metadata

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ErrMalformedTags reports embedded tags that could not be parsed.
var ErrMalformedTags = errors.New("malformed embedded tags")

// Fields is the set of track fields the normalizer produces.
type Fields struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Duration    int
	TrackNumber int
	Year        int
}

// Raw bundles every source of metadata known for one file.
type Raw struct {
	Tags            Fields // embedded file tags
	Service         Fields // streaming service metadata
	DecodedDuration int    // measured from the file, seconds; 0 when unknown
}

// Normalize merges raw with filename-derived fields into a canonical record.
func Normalize(raw Raw, fallbackFilename string) Fields {
	fromName := ParseFilename(fallbackFilename)

	out := Fields{
		Title:       firstString(raw.Tags.Title, raw.Service.Title, fromName.Title),
		Artist:      firstString(raw.Tags.Artist, raw.Service.Artist, fromName.Artist),
		Album:       firstString(raw.Tags.Album, raw.Service.Album),
		Genre:       firstString(raw.Tags.Genre, raw.Service.Genre),
		TrackNumber: firstInt(raw.Tags.TrackNumber, raw.Service.TrackNumber, fromName.TrackNumber),
		Year:        firstInt(raw.Tags.Year, raw.Service.Year),
		Duration:    firstInt(raw.DecodedDuration, raw.Tags.Duration, raw.Service.Duration),
	}

	if out.Title == "" {
		out.Title = stem(fallbackFilename)
	}
	if out.Title == "" {
		out.Title = "Untitled"
	}
	if out.Duration < 0 {
		out.Duration = 0
	}
	return out
}

// NormalizeFile reads the embedded tags of path and normalizes them together with service metadata.
//
// A tag read failure is returned alongside a record built from the remaining sources.
func NormalizeFile(path string, service Fields, decodedDuration int) (Fields, error) {
	tags, err := ReadTags(path)
	fields := Normalize(Raw{Tags: tags, Service: service, DecodedDuration: decodedDuration}, filepath.Base(path))
	return fields, err
}

// TrackFromFile builds a manually added track for the audio file at path from its tags, its filename
// and decodedDuration. As with [NormalizeFile], an [ErrMalformedTags] error comes with a usable track;
// any other error means the file could not be read.
func TrackFromFile(path string, decodedDuration int) (models.Track, error) {
	fields, tagErr := NormalizeFile(path, Fields{}, decodedDuration)
	hash, err := shared.FileHash(path)
	if err != nil {
		return models.Track{}, err
	}
	t := models.Track{Filename: filepath.Base(path), FileHash: hash}
	fields.Apply(&t)
	return t, tagErr
}

// FromRemote converts a remote listing entry into service fields.
func FromRemote(rt models.RemoteTrack) Fields {
	return Fields{
		Title:       rt.Title,
		Artist:      rt.Artist,
		Album:       rt.Album,
		Genre:       rt.Genre,
		Duration:    rt.Duration,
		TrackNumber: rt.TrackNumber,
		Year:        rt.Year,
	}
}

// Apply copies f onto track, leaving file-related fields untouched.
func (f Fields) Apply(track *models.Track) {
	track.Title = f.Title
	track.Artist = f.Artist
	track.Album = f.Album
	track.Genre = f.Genre
	track.Duration = f.Duration
	track.TrackNumber = f.TrackNumber
	track.Year = f.Year
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func stem(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
