package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

var _ list.Item = playlistItem{}

// playlistItem wraps a playlist folder and its manifest to implement [list.Item].
type playlistItem struct {
	dir      string
	playlist *models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks • %s", i.playlist.TrackCount, shared.FormatDuration(i.playlist.TotalDuration))
	switch src := i.playlist.Source; {
	case src == nil:
		desc += " • local only"
	case src.LastSync != nil:
		desc = fmt.Sprintf("%s • %s • synced %s", desc, src.Type, src.LastSync.Format("2006-01-02 15:04"))
	default:
		desc = fmt.Sprintf("%s • %s • never synced", desc, src.Type)
	}
	return desc
}
