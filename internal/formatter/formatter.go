// package formatter renders sync reports (text, JSON) and exports playlist manifests (M3U, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// UnknownArtist is written to M3U entries of tracks without an artist.
const UnknownArtist = "Unknown Artist"

// ReportFormat selects how a sync report is rendered.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
)

// ExportFormat selects the file format of a playlist export.
type ExportFormat string

const (
	ExportM3U      ExportFormat = "m3u"
	ExportCSV      ExportFormat = "csv"
	ExportMarkdown ExportFormat = "md"
	ExportText     ExportFormat = "txt"
)

// ParseExportFormat accepts the format names used on the command line.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m3u", "m3u8":
		return ExportM3U, nil
	case "csv":
		return ExportCSV, nil
	case "md", "markdown":
		return ExportMarkdown, nil
	case "txt", "text":
		return ExportText, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q (m3u, csv, md, txt)", shared.ErrInvalidArgument, s)
}

// WriteReport renders r to w in the given format.
func WriteReport(w io.Writer, r *models.SyncReport, format ReportFormat) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case ReportJSON:
		data, err = ReportToJSON(r)
	case ReportText, "":
		data = ReportToText(r)
	default:
		return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToText summarizes a report for a terminal, listing every failed track with its reason.
func ReportToText(r *models.SyncReport) []byte {
	var buf bytes.Buffer

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(100 * time.Millisecond)
	fmt.Fprintf(&buf, "Sync of %s finished in %s\n", r.Playlist, elapsed)
	fmt.Fprintf(&buf, "  Added:   %d\n", len(r.Added))
	fmt.Fprintf(&buf, "  Updated: %d\n", len(r.Updated))
	fmt.Fprintf(&buf, "  Removed: %d\n", len(r.Removed))
	fmt.Fprintf(&buf, "  Failed:  %d\n", len(r.Failed))

	if len(r.Failed) > 0 {
		buf.WriteString("\nFailed tracks:\n")
		for _, f := range r.Failed {
			name := f.Title
			if f.Artist != "" {
				name = f.Artist + " - " + f.Title
			}
			fmt.Fprintf(&buf, "  ✗ %s (%s): %s\n", name, f.Kind, f.Reason)
		}
	}
	if r.Empty() {
		buf.WriteString("\nPlaylist is up to date.\n")
	}
	return buf.Bytes()
}

// ReportToJSON encodes r as indented JSON.
func ReportToJSON(r *models.SyncReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders the playlist stored in dir in the given format.
func Export(p *models.Playlist, dir string, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportM3U:
		return ExportToM3U(p, dir)
	case ExportCSV:
		return ExportToCSV(p)
	case ExportMarkdown:
		return ExportToMarkdown(p), nil
	case ExportText:
		return ExportToText(p), nil
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
}

// ExportToM3U writes an extended M3U playlist with absolute paths to the track files in dir.
func ExportToM3U(p *models.Playlist, dir string) ([]byte, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist folder: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	for _, t := range p.Tracks {
		artist := t.Artist
		if artist == "" {
			artist = UnknownArtist
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s - %s\n", t.Duration, artist, t.Title)
		buf.WriteString(filepath.Join(abs, t.Filename))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ExportToCSV converts a playlist to CSV with columns: Filename, Title, Artist, Album, Duration, Source ID, Plays, Skips
func ExportToCSV(p *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Filename", "Title", "Artist", "Album", "Duration", "Source ID", "Plays", "Skips"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range p.Tracks {
		record := []string{
			t.Filename,
			t.Title,
			t.Artist,
			t.Album,
			strconv.Itoa(t.Duration),
			t.SourceID,
			strconv.Itoa(t.PlayCount),
			strconv.Itoa(t.SkipCount),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a playlist as Markdown, linking the cover image when the playlist has one.
func ExportToMarkdown(p *models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.CoverImage != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", p.CoverImage)
	}
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(p.Tracks))
	fmt.Fprintf(&buf, "**Duration**: %s\n", shared.FormatDuration(p.TotalDuration))
	if p.Source != nil {
		fmt.Fprintf(&buf, "**Source**: %s\n", p.Source.URL)
		if p.Source.LastSync != nil {
			fmt.Fprintf(&buf, "**Last sync**: %s\n", p.Source.LastSync.Format("2006-01-02 15:04"))
		}
	}

	buf.WriteString("\n## Tracks\n\n")
	for i, t := range p.Tracks {
		albumPart := ""
		if t.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", t.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, displayName(t), albumPart, shared.FormatDuration(t.Duration))
	}
	return buf.Bytes()
}

// ExportToText converts a playlist to plain text format
func ExportToText(p *models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(p.Tracks))

	for i, t := range p.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, displayName(t))
	}
	return buf.Bytes()
}

// WriteExport renders the playlist in dir and writes it to path.
//
// Defaults to {sanitized playlist name}.{format} in the working directory.
func WriteExport(p *models.Playlist, dir string, format ExportFormat, path string) (string, error) {
	if path == "" {
		path = shared.SanitizeFilename(p.Name) + "." + string(format)
	}

	data, err := Export(p, dir, format)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func displayName(t models.Track) string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
