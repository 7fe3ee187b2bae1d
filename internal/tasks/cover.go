package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/disintegration/imaging"
)

// CoverFilename is the name of the cover image inside a playlist folder.
const CoverFilename = "cover.jpg"

const coverSize = 600

// CoverFetcher stores a playlist cover image inside a playlist folder and returns its filename.
type CoverFetcher interface {
	FetchCover(ctx context.Context, url, dir string) (string, error)
}

// ImageCoverFetcher downloads cover art, fits it into 600x600 and saves it as JPEG.
type ImageCoverFetcher struct {
	client *http.Client
}

// NewCoverFetcher creates an [ImageCoverFetcher]. A nil client uses a 30 second timeout.
func NewCoverFetcher(client *http.Client) *ImageCoverFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageCoverFetcher{client: client}
}

// FetchCover writes the image at url to dir/cover.jpg, replacing any previous cover atomically.
func (c *ImageCoverFetcher) FetchCover(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create cover request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download cover: status %d", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode cover: %w", err)
	}
	img = imaging.Fit(img, coverSize, coverSize, imaging.Lanczos)

	tmp := filepath.Join(dir, ".plsync-cover-"+shared.GenerateID()+".jpg")
	if err := imaging.Save(img, tmp, imaging.JPEGQuality(90)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save cover: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, CoverFilename)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move cover into place: %w", err)
	}
	return CoverFilename, nil
}
