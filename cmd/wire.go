package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/fetch"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/resolver"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"golang.org/x/time/rate"
)

const apiTimeout = 30 * time.Second

// newEngine builds the sync engine described by config.
//
// YouTube Music playlists are listed through the proxy, or through yt-dlp when no proxy is
// configured. Spotify is only listed when credentials are present. With a database the engine
// records run history and the resolver reuses earlier resolutions.
func newEngine(config *shared.Config, store *manifest.Store, db *sql.DB, logger *log.Logger) (*tasks.PlaylistEngine, *repositories.SyncRunRepository) {
	client := &http.Client{Timeout: apiTimeout}
	yt := config.Credentials.YouTube
	youtube := services.NewYouTubeService(yt.ProxyURL, yt.AuthFile, client)

	listers := []services.Lister{youtube}
	if yt.ProxyURL == "" {
		listers = []services.Lister{services.NewYTDLPService(0)}
	}
	if spotify, err := services.NewSpotifyService(config.Credentials.Spotify); err != nil {
		logger.Debug("spotify listing disabled", "error", err)
	} else {
		listers = append(listers, spotify)
	}

	deps := tasks.Dependencies{
		Store:   store,
		Listers: services.NewListers(listers...),
		Covers:  tasks.NewCoverFetcher(client),
		Logger:  logger,
	}

	sc := config.Sync
	opts := resolver.Options{
		MaxCandidates:     sc.MaxCandidates,
		Threshold:         sc.AcceptanceThreshold,
		DurationTolerance: sc.DurationTolerance,
		Logger:            logger,
	}
	if sc.RateLimit > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(sc.RateLimit), 1)
	}

	var history *repositories.SyncRunRepository
	if db != nil {
		cache := repositories.NewResolutionCache(repositories.NewResolutionRepository(db))
		history = repositories.NewSyncRunRepository(db)
		opts.Cache = cache
		deps.Resolutions = cache
		deps.Runs = history
	}
	deps.Resolver = resolver.New(youtube, opts)

	downloader := fetch.NewAutoDownloader(
		fetch.NewYTDLPDownloader(sc.AudioFormat, sc.AudioQuality),
		fetch.NewHTTPDownloader(nil),
	)
	deps.Fetcher = fetch.NewFetcher(downloader, fetch.NewFFprobe(), fetch.Options{
		Policy: fetch.Policy{
			MaxAttempts:    sc.MaxAttempts,
			InitialBackoff: sc.InitialBackoff(),
			MaxBackoff:     sc.MaxBackoff(),
		},
		Logger: logger,
	})

	return tasks.NewPlaylistEngine(tasks.ConfigFromShared(sc), deps), history
}
