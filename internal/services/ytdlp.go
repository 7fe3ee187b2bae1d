// yt-dlp backed YouTube [Lister] for setups without the YouTube Music proxy
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/ytget/ytdlp/v2"
)

const defaultListTimeout = 60 * time.Second

// YTDLPService lists YouTube playlists by scraping them with ytdlp. Listings carry titles and
// video ids only; artist and duration are filled in from the downloaded file's tags later.
type YTDLPService struct {
	timeout time.Duration
}

// NewYTDLPService creates a lister with a default timeout of one minute per listing.
func NewYTDLPService(timeout time.Duration) *YTDLPService {
	if timeout <= 0 {
		timeout = defaultListTimeout
	}
	return &YTDLPService{timeout: timeout}
}

func (y *YTDLPService) Name() string { return "YouTube (yt-dlp)" }

func (y *YTDLPService) Origin() models.Origin { return models.OriginYouTubeMusic }

func (y *YTDLPService) ListTracks(ctx context.Context, playlistURL string) (*models.RemoteListing, error) {
	playlistID, err := models.PlaylistID(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: listing %s: %v", shared.ErrTimeout, playlistID, err)
		}
		return nil, fmt.Errorf("%w: failed to get playlist items: %v", shared.ErrServiceUnavailable, err)
	}

	listing := &models.RemoteListing{Tracks: make([]models.RemoteTrack, 0, len(items))}
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		artist, title := splitVideoTitle(it.Title)
		listing.Tracks = append(listing.Tracks, models.RemoteTrack{
			SourceID: models.OriginYouTubeMusic.SourceID(it.VideoID),
			Title:    title,
			Artist:   artist,
			URL:      ytWatchURL + it.VideoID,
		})
	}
	return listing, nil
}

// splitVideoTitle splits "Artist - Title" video titles; other titles are returned whole.
func splitVideoTitle(s string) (artist, title string) {
	if a, t, ok := strings.Cut(s, " - "); ok && strings.TrimSpace(a) != "" && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", strings.TrimSpace(s)
}
