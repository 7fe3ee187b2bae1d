package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin identifies where a playlist's tracks come from. The set is closed.
type Origin string

const (
	OriginManual       Origin = "manual"
	OriginSpotify      Origin = "spotify"
	OriginYouTubeMusic Origin = "youtube_music"
)

// Capabilities is what an [Origin] can do for a sync run.
type Capabilities struct {
	ListTracks       bool // remote listing can be read
	ResolveCandidate bool // listed references carry a directly fetchable handle
}

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginManual, OriginSpotify, OriginYouTubeMusic:
		return true
	}
	return false
}

// Capabilities returns the fixed capability set of o.
func (o Origin) Capabilities() Capabilities {
	switch o {
	case OriginSpotify:
		return Capabilities{ListTracks: true}
	case OriginYouTubeMusic:
		return Capabilities{ListTracks: true, ResolveCandidate: true}
	default:
		return Capabilities{}
	}
}

// SourceIDPrefix is the prefix of source ids minted for tracks of this origin.
func (o Origin) SourceIDPrefix() string {
	switch o {
	case OriginSpotify:
		return "spotify:track:"
	case OriginYouTubeMusic:
		return "youtube:video:"
	default:
		return ""
	}
}

// SourceID builds the stable per-service track identifier, e.g. "spotify:track:<id>".
func (o Origin) SourceID(id string) string {
	return o.SourceIDPrefix() + id
}

// ParseSourceID splits a source id into its origin and service-local id.
func ParseSourceID(sourceID string) (Origin, string, error) {
	for _, o := range []Origin{OriginSpotify, OriginYouTubeMusic} {
		if id, ok := strings.CutPrefix(sourceID, o.SourceIDPrefix()); ok && id != "" {
			return o, id, nil
		}
	}
	return "", "", fmt.Errorf("unrecognized source id %q", sourceID)
}

// DetectOrigin infers the origin of a remote playlist URL.
func DetectOrigin(raw string) (Origin, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid playlist url %q", raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case host == "open.spotify.com" && strings.HasPrefix(u.Path, "/playlist/"):
		return OriginSpotify, nil
	case host == "music.youtube.com", host == "youtube.com" && u.Query().Get("list") != "":
		return OriginYouTubeMusic, nil
	}
	return "", fmt.Errorf("unsupported playlist url %q", raw)
}

// PlaylistID extracts the service playlist id from a remote playlist URL.
func PlaylistID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid playlist url %q", raw)
	}
	if list := u.Query().Get("list"); list != "" {
		return list, nil
	}
	if id, ok := strings.CutPrefix(u.Path, "/playlist/"); ok && id != "" {
		return strings.Trim(id, "/"), nil
	}
	return "", fmt.Errorf("no playlist id in url %q", raw)
}
