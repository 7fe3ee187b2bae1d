package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings of every view. The playlist list handles its own navigation keys.
type keyMap struct {
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	cancel  key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "sync")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel run")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "back to playlists")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings shown in the help line of view.
func (k keyMap) forView(view ViewState, single bool) []key.Binding {
	switch view {
	case PlaylistListView:
		return []key.Binding{k.enter, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no, k.quit}
	case SyncView:
		return []key.Binding{k.cancel}
	case ResultView:
		if single {
			return []key.Binding{k.quit}
		}
		return []key.Binding{k.restart, k.quit}
	}
	return nil
}
