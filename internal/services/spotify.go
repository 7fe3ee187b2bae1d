// Spotify API implementation of [Lister]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyPageSize = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	IsLocal     bool            `json:"is_local"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyPlaylist represents the playlist fields read before paging its tracks.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed tracks.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks is one page of a playlist's tracks.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService reads public playlists with the client-credentials flow.
// The [oauth2] transport fetches and refreshes the app token on demand.
type SpotifyService struct {
	api     *apiClient
	baseURL string
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*spotifyOptions)

type spotifyOptions struct {
	baseURL  string
	tokenURL string
	client   *http.Client
}

// WithSpotifyEndpoints points the service at alternative API and token URLs.
func WithSpotifyEndpoints(baseURL, tokenURL string) SpotifyOption {
	return func(o *spotifyOptions) {
		o.baseURL = baseURL
		o.tokenURL = tokenURL
	}
}

// WithSpotifyHTTPClient sets the base client used for both token and API requests.
func WithSpotifyHTTPClient(c *http.Client) SpotifyOption {
	return func(o *spotifyOptions) { o.client = c }
}

// NewSpotifyService creates a Spotify lister from app credentials.
func NewSpotifyService(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	o := spotifyOptions{baseURL: spotifyBaseURL, tokenURL: spotifyTokenURL}
	for _, opt := range opts {
		opt(&o)
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     o.tokenURL,
	}

	ctx := context.Background()
	if o.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)
	}

	return &SpotifyService{
		api:     newAPIClient("spotify", cc.Client(ctx)),
		baseURL: strings.TrimRight(o.baseURL, "/"),
	}, nil
}

func (s *SpotifyService) Name() string { return "Spotify" }

func (s *SpotifyService) Origin() models.Origin { return models.OriginSpotify }

// Playlist retrieves playlist metadata without its tracks.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("%s/playlists/%s?fields=%s", s.baseURL, url.PathEscape(playlistID), url.QueryEscape("id,name,description,images"))
	if err := s.api.getJSON(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// ListTracks reads every page of the playlist at playlistURL.
//
// Local files and removed tracks (no Spotify id) are skipped since they cannot be resolved.
func (s *SpotifyService) ListTracks(ctx context.Context, playlistURL string) (*models.RemoteListing, error) {
	playlistID, err := models.PlaylistID(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	listing := &models.RemoteListing{
		Name:        playlist.Name,
		Description: playlist.Description,
		Tracks:      []models.RemoteTrack{},
	}
	if len(playlist.Images) > 0 {
		listing.CoverURL = playlist.Images[0].URL
	}

	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d&offset=0", s.baseURL, url.PathEscape(playlistID), spotifyPageSize)
	for next != "" {
		var page SpotifyPaginatedPlaylistTracks
		if err := s.api.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
				continue
			}
			listing.Tracks = append(listing.Tracks, spotifyRemoteTrack(*item.Track))
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	return listing, nil
}

func spotifyRemoteTrack(t SpotifyTrack) models.RemoteTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	return models.RemoteTrack{
		SourceID:    models.OriginSpotify.SourceID(t.ID),
		Title:       t.Name,
		Artist:      strings.Join(artists, ", "),
		Album:       t.Album.Name,
		Duration:    (t.DurationMS + 500) / 1000,
		TrackNumber: t.TrackNumber,
		Year:        releaseYear(t.Album.ReleaseDate),
		URL:         "https://open.spotify.com/track/" + t.ID,
	}
}

// releaseYear reads the year of a Spotify release date ("2019", "2019-05" or "2019-05-17").
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
