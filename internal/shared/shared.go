// package shared defines shared helpers
package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// AudioExtensions lists the file extensions treated as playlist audio.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".opus", ".ogg", ".wav"}

const maxFilenameLength = 100

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewDiscardLogger returns a [log.Logger] that writes nowhere. Engine components fall back to it when no logger is given.
func NewDiscardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel maps a config string ("debug", "info", ...) to a [log.Level], defaulting to info.
func ParseLogLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NormalizeTrackKey builds a case and whitespace insensitive "title|artist" key.
func NormalizeTrackKey(title, artist string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return norm(title) + "|" + norm(artist)
}

// SanitizeFilename replaces characters that are invalid on common filesystems,
// trims leading/trailing dots and spaces and caps the length.
//
// Returns "Untitled" when nothing usable remains.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_",
		"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
	)
	cleaned := strings.Trim(replacer.Replace(name), ". ")
	if r := []rune(cleaned); len(r) > maxFilenameLength {
		cleaned = strings.TrimRight(string(r[:maxFilenameLength]), ". ")
	}
	if cleaned == "" {
		return "Untitled"
	}
	return cleaned
}

// IsAudioFile reports whether path has one of [AudioExtensions].
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FileHash returns the hex sha256 digest of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FormatDuration renders seconds as m:ss (or h:mm:ss past an hour).
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
