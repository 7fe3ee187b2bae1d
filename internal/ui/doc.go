// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for syncing playlists:
//  1. [PlaylistListView] : Browse the playlist folders of the library
//  2. [ConfirmView] : Confirm the sync of the selected playlist
//  3. [SyncView] : Follow the run through its states with a progress bar
//  4. [ResultView] : Display the sync report and failed tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine; the engine never closes it, so the view stops
// reading once the run's outcome arrives. Pressing c (or q) during a run cancels it.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, c, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
