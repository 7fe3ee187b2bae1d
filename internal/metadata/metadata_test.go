package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Fields
	}{
		{"numbered artist title", "01. Daft Punk - One More Time.mp3", Fields{TrackNumber: 1, Artist: "Daft Punk", Title: "One More Time"}},
		{"artist title", "Daft Punk - Aerodynamic.flac", Fields{Artist: "Daft Punk", Title: "Aerodynamic"}},
		{"numbered dash title", "07 - Digital Love.mp3", Fields{TrackNumber: 7, Title: "Digital Love"}},
		{"numbered title", "03. Voyager.m4a", Fields{TrackNumber: 3, Title: "Voyager"}},
		{"bare", "Veridis Quo.ogg", Fields{Title: "Veridis Quo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFilename(tt.in); got != tt.want {
				t.Errorf("ParseFilename(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("tags win over service and filename", func(t *testing.T) {
		raw := Raw{
			Tags:    Fields{Title: "Tag Title", Artist: "Tag Artist"},
			Service: Fields{Title: "Svc Title", Artist: "Svc Artist", Album: "Svc Album", Duration: 200},
		}
		got := Normalize(raw, "Name Artist - Name Title.mp3")
		if got.Title != "Tag Title" || got.Artist != "Tag Artist" {
			t.Errorf("expected tag values, got %+v", got)
		}
		if got.Album != "Svc Album" {
			t.Errorf("expected service album, got %q", got.Album)
		}
	})

	t.Run("decoded duration is authoritative", func(t *testing.T) {
		raw := Raw{Tags: Fields{Duration: 180}, Service: Fields{Duration: 200}, DecodedDuration: 187}
		if got := Normalize(raw, "x.mp3"); got.Duration != 187 {
			t.Errorf("expected decoded duration 187, got %d", got.Duration)
		}
	})

	t.Run("service duration used when nothing decoded", func(t *testing.T) {
		if got := Normalize(Raw{Service: Fields{Duration: 200}}, "x.mp3"); got.Duration != 200 {
			t.Errorf("expected 200, got %d", got.Duration)
		}
	})

	t.Run("filename fallback", func(t *testing.T) {
		got := Normalize(Raw{}, "02. Artist - Song.mp3")
		if got.Title != "Song" || got.Artist != "Artist" || got.TrackNumber != 2 {
			t.Errorf("unexpected fields %+v", got)
		}
	})

	t.Run("whitespace values are ignored and trimmed", func(t *testing.T) {
		raw := Raw{Tags: Fields{Title: "   "}, Service: Fields{Title: "  Song  "}}
		if got := Normalize(raw, "x.mp3"); got.Title != "Song" {
			t.Errorf("expected trimmed service title, got %q", got.Title)
		}
	})

	t.Run("missing optional fields stay empty", func(t *testing.T) {
		got := Normalize(Raw{Service: Fields{Title: "Song"}}, "Song.mp3")
		if got.Album != "" || got.Genre != "" || got.Year != 0 {
			t.Errorf("expected empty optional fields, got %+v", got)
		}
	})
}

func TestNormalizeFile(t *testing.T) {
	t.Run("non mp3 uses service metadata", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Artist - Title.flac")
		if err := os.WriteFile(path, []byte("fLaC"), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := NormalizeFile(path, Fields{Album: "Album"}, 120)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != "Title" || got.Artist != "Artist" || got.Album != "Album" || got.Duration != 120 {
			t.Errorf("unexpected fields %+v", got)
		}
	})

	t.Run("unreadable file falls back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Missing.mp3")
		got, err := NormalizeFile(path, Fields{Artist: "Svc"}, 0)
		if !errors.Is(err, ErrMalformedTags) {
			t.Errorf("expected ErrMalformedTags, got %v", err)
		}
		if got.Title != "Missing" || got.Artist != "Svc" {
			t.Errorf("unexpected fallback fields %+v", got)
		}
	})
}

func TestTrackFromFile(t *testing.T) {
	t.Run("filename and duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "04. Artist - Title.flac")
		if err := os.WriteFile(path, []byte("fLaC"), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := TrackFromFile(path, 95)
		if err != nil {
			t.Fatalf("TrackFromFile() error = %v", err)
		}
		if got.Filename != "04. Artist - Title.flac" || got.Title != "Title" || got.Artist != "Artist" ||
			got.TrackNumber != 4 || got.Duration != 95 {
			t.Errorf("unexpected track %+v", got)
		}
		if !got.IsManual() || got.FileHash == "" {
			t.Errorf("expected a hashed manual track, got %+v", got)
		}
	})

	t.Run("malformed tags still yield a track", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Voice Memo.mp3")
		if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := TrackFromFile(path, 0)
		if err != nil && !errors.Is(err, ErrMalformedTags) {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != "Voice Memo" || got.FileHash == "" {
			t.Errorf("unexpected track %+v", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := TrackFromFile(filepath.Join(t.TempDir(), "gone.flac"), 0)
		if err == nil || errors.Is(err, ErrMalformedTags) {
			t.Errorf("expected a read error, got %v", err)
		}
	})
}

func TestTagsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	frame := append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 124)...)
	if err := os.WriteFile(path, frame, 0644); err != nil {
		t.Fatal(err)
	}

	want := Fields{Title: "Song", Artist: "Artist", Album: "Album", Genre: "House", Year: 2001, TrackNumber: 4, Duration: 215}
	if err := WriteTags(path, want); err != nil {
		t.Fatalf("WriteTags() error = %v", err)
	}

	got, err := ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadTags() = %+v, want %+v", got, want)
	}
}

func TestApply(t *testing.T) {
	track := models.Track{Filename: "a.mp3", PlayCount: 3}
	Fields{Title: "T", Artist: "A", Duration: 10}.Apply(&track)
	if track.Title != "T" || track.Artist != "A" || track.Duration != 10 || track.Filename != "a.mp3" || track.PlayCount != 3 {
		t.Errorf("unexpected track %+v", track)
	}
}
