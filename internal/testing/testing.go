// package testing contains shared testing utilities
package testing

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// SamplePlaylist returns a synced playlist with one Spotify track and one manually added track.
func SamplePlaylist() *models.Playlist {
	synced := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	p := models.NewPlaylist("Road Trip", "Songs for the drive", &models.Source{
		Type:     models.OriginSpotify,
		URL:      "https://open.spotify.com/playlist/PL1",
		LastSync: &synced,
	}, synced)
	p.Tracks = []models.Track{
		{
			Filename:  "Artist One - Song One.mp3",
			Title:     "Song One",
			Artist:    "Artist One",
			Album:     "Album One",
			Duration:  180,
			SourceID:  "spotify:track:1",
			PlayCount: 4,
			SkipCount: 1,
		},
		{
			Filename: "voice memo.m4a",
			Title:    "voice memo",
			Duration: 65,
		},
	}
	p.Recalculate()
	return p
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
