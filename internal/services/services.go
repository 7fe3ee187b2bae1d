// package services implements the remote playlist collaborators of a sync run.
//
// Spotify, YouTube Music (via proxy or yt-dlp)
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Lister reads the complete track listing of a remote playlist.
//
// Implementations return a typed failure ([shared.ErrAuthFailed], [shared.ErrRateLimited],
// [shared.ErrPlaylistNotFound], [shared.ErrServiceUnavailable]) and never a partial listing.
type Lister interface {
	// ListTracks reads every track of the playlist at url.
	ListTracks(ctx context.Context, url string) (*models.RemoteListing, error)

	// Origin returns the origin this lister serves.
	Origin() models.Origin

	// Name returns the name of the service (e.g., "Spotify", "YouTube Music")
	Name() string
}

// Listers selects a [Lister] by origin.
type Listers map[models.Origin]Lister

// NewListers indexes listers by their origin. Later listers replace earlier ones for the same origin.
func NewListers(listers ...Lister) Listers {
	l := Listers{}
	for _, lister := range listers {
		if lister != nil {
			l[lister.Origin()] = lister
		}
	}
	return l
}

// For returns the lister of origin o.
func (l Listers) For(o models.Origin) (Lister, error) {
	if !o.Capabilities().ListTracks {
		return nil, fmt.Errorf("%w: %s playlists have no remote listing", shared.ErrUnsupportedOrigin, o)
	}
	lister, ok := l[o]
	if !ok {
		return nil, fmt.Errorf("%w: no %s service configured", shared.ErrUnsupportedOrigin, o)
	}
	return lister, nil
}
