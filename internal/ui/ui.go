package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/tasks"
)

// maxLogLines is how many recent progress messages the sync view keeps.
const maxLogLines = 8

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// Engine is the part of [tasks.PlaylistEngine] the TUI drives.
type Engine interface {
	Start(ctx context.Context, dir string, progress chan<- tasks.ProgressUpdate) string
	Cancel(runID string) error
	Wait(ctx context.Context, runID string) (*models.SyncReport, error)
}

// Loader reads playlist manifests, e.g. [manifest.Store].
type Loader interface {
	Load(dir string) (*manifest.Manifest, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       Engine
	loader       Loader
	root         string
	width        int
	height       int
	playlistList list.Model
	listReady    bool
	single       bool
	selected     *playlistItem
	runID        string
	cancelling   bool
	progressChan chan tasks.ProgressUpdate
	done         chan struct{}
	progress     tasks.ProgressUpdate
	bar          progress.Model
	log          []string
	report       *models.SyncReport
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI listing the playlists under root.
func NewModel(ctx context.Context, engine Engine, loader Loader, root string) *Model {
	return &Model{
		ctx:    ctx,
		view:   PlaylistListView,
		engine: engine,
		loader: loader,
		root:   root,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// NewSyncModel creates a TUI that syncs the playlist in dir right away.
func NewSyncModel(ctx context.Context, engine Engine, loader Loader, dir string) *Model {
	m := NewModel(ctx, engine, loader, "")
	m.selected = &playlistItem{dir: dir}
	m.view = SyncView
	m.single = true
	return m
}

// Init loads the playlist list, or starts the sync of a preselected playlist.
func (m *Model) Init() tea.Cmd {
	if m.view == SyncView {
		return m.startSync()
	}
	return m.loadPlaylists()
}

// Report returns the report of the last finished run, if any.
func (m *Model) Report() *models.SyncReport { return m.report }

// Err returns the error of the last run, if any.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 20)
		if m.listReady {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsLoaded:
		data := msg.data.(playlistsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.items))
		for i, it := range data.items {
			items[i] = it
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Playlists"
		m.playlistList.SetSize(m.width-4, m.height-8)
		m.listReady = true
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Message != "" {
			m.log = append(m.log, update.Message)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		return m, waitForProgress(m.progressChan, m.done)

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.report = data.report
		m.err = data.err
		m.view = ResultView
		m.runID = ""
		m.cancelling = false
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case !m.listReady:
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if it, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.selected = &it
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) || key.Matches(msg, m.keys.quit) {
		if m.runID != "" && !m.cancelling {
			m.cancelling = true
			m.engine.Cancel(m.runID)
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart) && !m.single:
		m.view = PlaylistListView
		m.selected = nil
		m.report = nil
		m.err = nil
		m.log = nil
		return m, m.loadPlaylists()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PlaylistListView || !m.listReady {
		return m, nil
	}
	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) loadPlaylists() tea.Cmd {
	root, loader := m.root, m.loader
	return func() tea.Msg {
		dirs, err := manifest.List(root)
		if err != nil {
			return playlistsLoadedMsg(nil, err)
		}
		items := make([]playlistItem, 0, len(dirs))
		for _, dir := range dirs {
			mf, err := loader.Load(dir)
			if err != nil {
				continue
			}
			items = append(items, playlistItem{dir: dir, playlist: mf.Playlist})
		}
		return playlistsLoadedMsg(items, nil)
	}
}

// startSync starts a run of the selected playlist. The engine never closes the progress channel, so
// waiting for progress ends when the run's outcome arrives.
func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan struct{})
	m.progress = tasks.ProgressUpdate{}
	m.log = nil
	m.runID = m.engine.Start(m.ctx, m.selected.dir, m.progressChan)

	return tea.Batch(waitForProgress(m.progressChan, m.done), waitForResult(m.ctx, m.engine, m.runID, m.done))
}

func waitForProgress(ch <-chan tasks.ProgressUpdate, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-ch:
			return progressUpdateMsg(update)
		case <-done:
			return nil
		}
	}
}

func waitForResult(ctx context.Context, engine Engine, runID string, done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		report, err := engine.Wait(ctx, runID)
		close(done)
		return syncCompleteMsg(report, err)
	}
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	p := m.selected.playlist
	title := styles.title.Render(fmt.Sprintf("Sync '%s'?", p.Name))

	var info strings.Builder
	fmt.Fprintf(&info, "\nFolder: %s\nTracks: %d\n", m.selected.dir, p.TrackCount)
	if p.Source != nil {
		fmt.Fprintf(&info, "Source: %s (%s)\n", p.Source.URL, p.Source.Type)
	} else {
		info.WriteString(styles.warn.Render("This playlist has no remote source and cannot be synced.") + "\n")
	}

	return fmt.Sprintf("%s\n%s\n%s", title, info.String(), m.helpView())
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Playlist")

	var phase string
	switch m.progress.Phase {
	case models.StateFetchingRemoteListing:
		phase = "Reading remote playlist..."
	case models.StateDiffing:
		phase = "Comparing with local manifest..."
	case models.StateResolving:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case models.StateFetchingContent:
		phase = fmt.Sprintf("Downloading tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case models.StateCommitting:
		phase = "Writing manifest..."
	default:
		phase = "Starting..."
	}

	var percent float64
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n%s\n\n", title, phase, m.bar.ViewAs(percent))
	for _, line := range m.log {
		b.WriteString(styles.help.Render(line) + "\n")
	}
	if m.cancelling {
		b.WriteString("\n" + styles.warn.Render("Cancelling, waiting for running tracks to finish..."))
	} else {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.helpView()

	if m.err != nil {
		return stoppedLine(m.err) + "\n\n" + helpView
	}
	if m.report == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	r := m.report
	title := styles.ok.Render("✓ Sync Complete!")
	info := fmt.Sprintf("\nPlaylist: %s\nAdded: %d  Updated: %d  Removed: %d  Failed: %d",
		r.Playlist, len(r.Added), len(r.Updated), len(r.Removed), len(r.Failed))

	var failed string
	if len(r.Failed) > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Failed to add %d tracks:", len(r.Failed))))
		for _, f := range r.Failed {
			failed += "\n" + failureLine(f)
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.forView(m.view, m.single))
}
