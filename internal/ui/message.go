package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type playlistsLoaded struct {
	items []playlistItem
	err   error
}

type syncComplete struct {
	report *models.SyncReport
	err    error
}

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(items []playlistItem, err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, data: playlistsLoaded{items, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(report *models.SyncReport, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{report, err}}
}
