package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

// Downloader writes the content behind a candidate handle to disk.
//
// Implementations write to a file whose path starts with tmpBase and return that path.
// They never touch any other file, so a failed download leaves nothing behind once the
// caller removes the returned or globbed tmpBase files.
type Downloader interface {
	Download(ctx context.Context, handle, tmpBase string) (string, error)
	SupportsHandle(handle string) bool
}

// HTTPDownloader streams direct media URLs.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDownloader creates a downloader for plain http(s) media URLs. A nil client uses a
// client with a long timeout.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &HTTPDownloader{client: client, userAgent: "plsync/1.0"}
}

func (d *HTTPDownloader) SupportsHandle(handle string) bool {
	return strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://")
}

func (d *HTTPDownloader) Download(ctx context.Context, handle, tmpBase string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", shared.ErrPermanent, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, URL: handle}
	}

	out := tmpBase + extensionFor(handle, resp.Header.Get("Content-Type"))
	f, err := os.OpenFile(out, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return out, fmt.Errorf("failed to save file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return out, fmt.Errorf("failed to sync file: %w", err)
	}
	return out, f.Close()
}

// extensionFor picks a file extension from the URL path, then the content type, defaulting to .mp3.
func extensionFor(handle, contentType string) string {
	if u, err := url.Parse(handle); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); isAudioExt(ext) {
			return ext
		}
	}
	switch {
	case strings.Contains(contentType, "flac"):
		return ".flac"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"), strings.Contains(contentType, "aac"):
		return ".m4a"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	default:
		return ".mp3"
	}
}

func isAudioExt(ext string) bool {
	switch ext {
	case ".mp3", ".flac", ".m4a", ".opus", ".ogg", ".wav":
		return true
	}
	return false
}

// YTDLPDownloader fetches YouTube handles through yt-dlp, extracting audio to a fixed format.
type YTDLPDownloader struct {
	format  string
	quality string
}

// NewYTDLPDownloader creates a yt-dlp backed downloader. Empty values default to mp3 at 320K.
func NewYTDLPDownloader(format, quality string) *YTDLPDownloader {
	if format == "" {
		format = "mp3"
	}
	if quality == "" {
		quality = "320K"
	}
	return &YTDLPDownloader{format: format, quality: quality}
}

func (d *YTDLPDownloader) SupportsHandle(handle string) bool {
	u, err := url.Parse(handle)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host == "youtube.com" || host == "music.youtube.com" || host == "youtu.be" || host == "m.youtube.com"
}

func (d *YTDLPDownloader) Download(ctx context.Context, handle, tmpBase string) (string, error) {
	dl := ytdlp.New().
		ExtractAudio().
		AudioFormat(d.format).
		AudioQuality(d.quality).
		NoPlaylist().
		NoProgress().
		Output(tmpBase + ".%(ext)s")

	res, err := dl.Run(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		return "", fmt.Errorf("yt-dlp failed for %s: %w (%w)", handle, classifyToolOutput(stderr+" "+err.Error()), err)
	}

	out := tmpBase + "." + d.format
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	matches, _ := filepath.Glob(tmpBase + ".*")
	for _, m := range matches {
		if isAudioExt(strings.ToLower(filepath.Ext(m))) {
			return m, nil
		}
	}
	return "", fmt.Errorf("yt-dlp produced no audio file for %s: %w", handle, shared.ErrPermanent)
}

// AutoDownloader routes each handle to the first downloader that supports it.
type AutoDownloader struct {
	downloaders []Downloader
}

// NewAutoDownloader tries downloaders in order.
func NewAutoDownloader(downloaders ...Downloader) *AutoDownloader {
	return &AutoDownloader{downloaders: downloaders}
}

func (a *AutoDownloader) SupportsHandle(handle string) bool {
	return a.pick(handle) != nil
}

func (a *AutoDownloader) Download(ctx context.Context, handle, tmpBase string) (string, error) {
	d := a.pick(handle)
	if d == nil {
		return "", fmt.Errorf("no downloader available for %s: %w", handle, shared.ErrPermanent)
	}
	return d.Download(ctx, handle, tmpBase)
}

func (a *AutoDownloader) pick(handle string) Downloader {
	for _, d := range a.downloaders {
		if d.SupportsHandle(handle) {
			return d
		}
	}
	return nil
}
