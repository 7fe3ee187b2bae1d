// YouTube Music API [Lister] and search implementation
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const (
	defaultYTBaseURL string = "http://localhost:8080"
	ytWatchURL       string = "https://music.youtube.com/watch?v="
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Year        string          `json:"year,omitempty"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	Thumbnails  []YouTubeImage `json:"thumbnails"`
	TrackCount  int            `json:"trackCount"`
	Tracks      []YouTubeTrack `json:"tracks"`
}

// YouTubeService lists YouTube Music playlists and searches songs via the proxy.
type YouTubeService struct {
	baseURL string
	api     *apiClient
}

// NewYouTubeService creates a new YouTube Music service instance.
// authFile, when set, is forwarded in the X-Auth-File header for private playlists.
func NewYouTubeService(baseURL, authFile string, client *http.Client) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	api := newAPIClient("youtube music", client)
	if authFile != "" {
		api.headers["X-Auth-File"] = authFile
	}
	return &YouTubeService{baseURL: strings.TrimRight(baseURL, "/"), api: api}
}

func (y *YouTubeService) Name() string { return "YouTube Music" }

func (y *YouTubeService) Origin() models.Origin { return models.OriginYouTubeMusic }

// ListTracks reads the playlist at playlistURL.
//
// Calls GET /api/playlists/{id} on the proxy, which returns every track in one response.
func (y *YouTubeService) ListTracks(ctx context.Context, playlistURL string) (*models.RemoteListing, error) {
	playlistID, err := models.PlaylistID(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var playlist YouTubePlaylist
	endpoint := fmt.Sprintf("%s/api/playlists/%s", y.baseURL, url.PathEscape(playlistID))
	if err := y.api.getJSON(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}

	listing := &models.RemoteListing{
		Name:        playlist.Title,
		Description: playlist.Description,
		CoverURL:    largestThumbnail(playlist.Thumbnails),
		Tracks:      make([]models.RemoteTrack, 0, len(playlist.Tracks)),
	}
	for _, t := range playlist.Tracks {
		if t.VideoID == "" {
			continue
		}
		listing.Tracks = append(listing.Tracks, youtubeRemoteTrack(t))
	}
	return listing, nil
}

// Search returns songs matching query as resolution candidates, unscored.
//
// Calls GET /api/search?q={query}&filter=songs on the proxy.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	endpoint := fmt.Sprintf("%s/api/search?q=%s&filter=songs", y.baseURL, url.QueryEscape(query))

	var results []YouTubeTrack
	if err := y.api.getJSON(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		rt := youtubeRemoteTrack(r)
		candidates = append(candidates, models.Candidate{
			Handle:   rt.URL,
			Title:    rt.Title,
			Artist:   rt.Artist,
			Album:    rt.Album,
			Duration: rt.Duration,
		})
	}
	return candidates, nil
}

func youtubeRemoteTrack(t YouTubeTrack) models.RemoteTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	rt := models.RemoteTrack{
		SourceID: models.OriginYouTubeMusic.SourceID(t.VideoID),
		Title:    t.Title,
		Artist:   strings.Join(artists, ", "),
		Duration: t.DurationSec,
		URL:      ytWatchURL + t.VideoID,
	}
	if rt.Duration == 0 {
		rt.Duration = parseClock(t.Duration)
	}
	if t.Album != nil {
		rt.Album = t.Album.Name
	}
	if y, err := strconv.Atoi(t.Year); err == nil {
		rt.Year = y
	}
	return rt
}

// parseClock converts "m:ss" or "h:mm:ss" to seconds, returning 0 when malformed.
func parseClock(s string) int {
	if s == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func largestThumbnail(images []YouTubeImage) string {
	best := ""
	area := -1
	for _, img := range images {
		if a := img.Width * img.Height; a > area {
			best, area = img.URL, a
		}
	}
	return best
}
