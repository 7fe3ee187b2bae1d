package tasks

import (
	"strings"

	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
)

// plan is the diff of a complete remote listing against a manifest.
type plan struct {
	listed    map[string]struct{} // every source id of the listing
	adds      []models.RemoteTrack
	refreshes []refresh
	removals  []models.Track
	unchanged int
}

type refresh struct {
	sourceID string
	update   manifest.UpdateTrack
}

// PlanSummary counts what a run intends to change.
type PlanSummary struct {
	Add       int `json:"add"`
	Refresh   int `json:"refresh"`
	Remove    int `json:"remove"`
	Unchanged int `json:"unchanged"`
}

func (p plan) summary() PlanSummary {
	return PlanSummary{Add: len(p.adds), Refresh: len(p.refreshes), Remove: len(p.removals), Unchanged: p.unchanged}
}

// diff compares listing with the tracks of pl.
//
// Listed tracks already in the playlist are refreshed when their metadata changed, the others are added.
// Synced tracks missing from the listing are removed. Manual tracks are never considered for removal.
// Repeated or id-less listing entries are ignored.
func diff(pl *models.Playlist, listing []models.RemoteTrack) plan {
	out := plan{listed: make(map[string]struct{}, len(listing))}

	for _, rt := range listing {
		if rt.SourceID == "" {
			continue
		}
		if _, dup := out.listed[rt.SourceID]; dup {
			continue
		}
		out.listed[rt.SourceID] = struct{}{}

		i := pl.TrackBySourceID(rt.SourceID)
		if i < 0 {
			out.adds = append(out.adds, rt)
			continue
		}
		if u, changed := refreshFor(pl.Tracks[i], rt); changed {
			out.refreshes = append(out.refreshes, refresh{sourceID: rt.SourceID, update: u})
		} else {
			out.unchanged++
		}
	}

	for _, t := range pl.Tracks {
		if t.IsManual() {
			continue
		}
		if _, ok := out.listed[t.SourceID]; !ok {
			out.removals = append(out.removals, t)
		}
	}
	return out
}

// refreshFor returns the update that brings t in line with the remote metadata of rt.
//
// Only non-empty remote values are applied. Duration is left alone since the stored one was decoded from the file.
func refreshFor(t models.Track, rt models.RemoteTrack) (manifest.UpdateTrack, bool) {
	u := manifest.UpdateTrack{Filename: t.Filename}
	changed := false

	str := func(dst *string, cur, remote string) {
		remote = strings.TrimSpace(remote)
		if remote != "" && remote != cur {
			*dst = remote
			changed = true
		}
	}
	num := func(dst *int, cur, remote int) {
		if remote > 0 && remote != cur {
			*dst = remote
			changed = true
		}
	}

	str(&u.Title, t.Title, rt.Title)
	str(&u.Artist, t.Artist, rt.Artist)
	str(&u.Album, t.Album, rt.Album)
	str(&u.Genre, t.Genre, rt.Genre)
	num(&u.TrackNumber, t.TrackNumber, rt.TrackNumber)
	num(&u.Year, t.Year, rt.Year)
	return u, changed
}

// overlayRemote applies the refresh rule to a freshly built track so the next run finds nothing to refresh.
func overlayRemote(t *models.Track, rt models.RemoteTrack) {
	if u, changed := refreshFor(*t, rt); changed {
		if u.Title != "" {
			t.Title = u.Title
		}
		if u.Artist != "" {
			t.Artist = u.Artist
		}
		if u.Album != "" {
			t.Album = u.Album
		}
		if u.Genre != "" {
			t.Genre = u.Genre
		}
		if u.TrackNumber > 0 {
			t.TrackNumber = u.TrackNumber
		}
		if u.Year > 0 {
			t.Year = u.Year
		}
	}
}
