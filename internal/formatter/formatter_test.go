package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	th "github.com/desertthunder/plsync/internal/testing"
)

func sampleReport() *models.SyncReport {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := models.NewSyncReport("run-1", "Road Trip", started)
	r.FinishedAt = started.Add(3200 * time.Millisecond)
	r.Added = []string{"spotify:track:1", "spotify:track:2"}
	r.Removed = []string{"spotify:track:9"}
	r.Failed = []models.TrackFailure{
		{SourceID: "spotify:track:3", Title: "Lost", Artist: "Nobody", Kind: models.FailureUnresolvable, Reason: "no acceptable candidate"},
	}
	return r
}

func TestReports(t *testing.T) {
	t.Run("ReportToText", func(t *testing.T) {
		output := string(ReportToText(sampleReport()))

		for _, want := range []string{
			"Sync of Road Trip finished in 3.2s",
			"Added:   2",
			"Updated: 0",
			"Removed: 1",
			"Failed:  1",
			"✗ Nobody - Lost (unresolvable): no acceptable candidate",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text report missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "up to date") {
			t.Error("non-empty report should not claim the playlist is up to date")
		}
	})

	t.Run("ReportToText empty", func(t *testing.T) {
		r := models.NewSyncReport("run-2", "Road Trip", time.Now())
		r.FinishedAt = r.StartedAt
		if output := string(ReportToText(r)); !strings.Contains(output, "Playlist is up to date.") {
			t.Errorf("expected up to date message, got:\n%s", output)
		}
	})

	t.Run("ReportToJSON", func(t *testing.T) {
		data, err := ReportToJSON(sampleReport())
		if err != nil {
			t.Fatalf("ReportToJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["run_id"] != "run-1" {
			t.Errorf("expected run_id run-1, got %v", decoded["run_id"])
		}
		failed, ok := decoded["failed"].([]any)
		if !ok || len(failed) != 1 {
			t.Fatalf("expected 1 failed entry, got %v", decoded["failed"])
		}
		if kind := failed[0].(map[string]any)["kind"]; kind != "unresolvable" {
			t.Errorf("expected kind unresolvable, got %v", kind)
		}
	})

	t.Run("WriteReport", func(t *testing.T) {
		var sb strings.Builder
		if err := WriteReport(&sb, sampleReport(), ReportJSON); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if !strings.HasPrefix(sb.String(), "{") {
			t.Errorf("expected JSON output, got %s", sb.String())
		}

		if err := WriteReport(&sb, sampleReport(), "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := WriteReport(&th.FWriter{}, sampleReport(), ReportText); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToM3U", func(t *testing.T) {
		dir := t.TempDir()
		data, err := ExportToM3U(th.SamplePlaylist(), dir)
		if err != nil {
			t.Fatalf("ExportToM3U failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		want := []string{
			"#EXTM3U",
			"#EXTINF:180,Artist One - Song One",
			filepath.Join(dir, "Artist One - Song One.mp3"),
			"#EXTINF:65,Unknown Artist - voice memo",
			filepath.Join(dir, "voice memo.m4a"),
		}
		if len(lines) != len(want) {
			t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), data)
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
			}
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(th.SamplePlaylist())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Filename,Title,Artist,Album,Duration,Source ID,Plays,Skips") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Artist One - Song One.mp3,Song One,Artist One,Album One,180,spotify:track:1,4,1") {
			t.Errorf("CSV missing first track, got: %s", output)
		}
		if !strings.Contains(output, "voice memo.m4a,voice memo,,,65,,0,0") {
			t.Errorf("CSV missing manual track, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		p := th.SamplePlaylist()

		t.Run("without cover image", func(t *testing.T) {
			output := string(ExportToMarkdown(p))

			for _, want := range []string{
				"# Road Trip",
				"**Description**: Songs for the drive",
				"**Tracks**: 2",
				"**Duration**: 4:05",
				"**Source**: https://open.spotify.com/playlist/PL1",
				"**Last sync**: 2025-03-01 12:30",
				"## Tracks",
				"1. Artist One - Song One (Album One) [3:00]",
				"2. voice memo [1:05]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown should not reference a cover")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			p := th.SamplePlaylist()
			p.CoverImage = "cover.jpg"
			if output := string(ExportToMarkdown(p)); !strings.Contains(output, "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover image")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		output := string(ExportToText(th.SamplePlaylist()))

		if !strings.Contains(output, "Playlist: Road Trip") {
			t.Errorf("Text missing playlist name")
		}
		if !strings.Contains(output, "Tracks: 2") {
			t.Errorf("Text missing track count")
		}
		if !strings.Contains(output, "1. Artist One - Song One") {
			t.Errorf("Text missing track1")
		}
		if !strings.Contains(output, "2. voice memo") {
			t.Errorf("Text missing track2")
		}
	})

	t.Run("ParseExportFormat", func(t *testing.T) {
		tests := map[string]ExportFormat{
			"m3u":      ExportM3U,
			"M3U8":     ExportM3U,
			"csv":      ExportCSV,
			"markdown": ExportMarkdown,
			" txt ":    ExportText,
		}
		for in, want := range tests {
			got, err := ParseExportFormat(in)
			if err != nil || got != want {
				t.Errorf("ParseExportFormat(%q) = %v, %v; want %v", in, got, err, want)
			}
		}
		if _, err := ParseExportFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("WithDefaultPath", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteExport(th.SamplePlaylist(), tempDir, ExportM3U, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "Road Trip.m3u" {
			t.Errorf("expected default path 'Road Trip.m3u', got %s", path)
		}
		th.AssertFileExists(t, filepath.Join(tempDir, path))
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "tracks.csv")
		path, err := WriteExport(th.SamplePlaylist(), t.TempDir(), ExportCSV, out)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != out {
			t.Errorf("expected %s, got %s", out, path)
		}
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Filename,") {
			t.Errorf("unexpected CSV content: %s", content)
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := WriteExport(th.SamplePlaylist(), t.TempDir(), ExportFormat("xml"), filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
