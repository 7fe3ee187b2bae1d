package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/manifest"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

type fakeEngine struct {
	started   []string
	cancelled []string
}

func (f *fakeEngine) Start(ctx context.Context, dir string, progress chan<- tasks.ProgressUpdate) string {
	f.started = append(f.started, dir)
	return "run-1"
}

func (f *fakeEngine) Cancel(runID string) error {
	f.cancelled = append(f.cancelled, runID)
	return nil
}

func (f *fakeEngine) Wait(ctx context.Context, runID string) (*models.SyncReport, error) {
	return nil, nil
}

type nopLoader struct{}

func (nopLoader) Load(dir string) (*manifest.Manifest, error) { return nil, nil }

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSyncModel(t *testing.T) {
	engine := &fakeEngine{}
	m := NewSyncModel(context.Background(), engine, nopLoader{}, "/music/Road Trip")

	if cmd := m.Init(); cmd == nil {
		t.Fatal("Init() should return a command")
	}
	if len(engine.started) != 1 || engine.started[0] != "/music/Road Trip" {
		t.Fatalf("expected sync of /music/Road Trip, got %v", engine.started)
	}

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.Update(progressUpdateMsg(tasks.ProgressUpdate{
		RunID:   "run-1",
		Phase:   models.StateFetchingContent,
		Step:    1,
		Total:   4,
		Message: "✓ Artist - Song",
	}))

	view := m.View()
	if !strings.Contains(view, "Downloading tracks (1/4)") {
		t.Errorf("expected download phase in view, got:\n%s", view)
	}
	if !strings.Contains(view, "Artist - Song") {
		t.Errorf("expected progress message in view, got:\n%s", view)
	}

	m.Update(keyPress("c"))
	m.Update(keyPress("c"))
	if len(engine.cancelled) != 1 || engine.cancelled[0] != "run-1" {
		t.Errorf("expected a single cancel of run-1, got %v", engine.cancelled)
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Error("expected cancelling notice")
	}

	report := models.NewSyncReport("run-1", "Road Trip", time.Now())
	report.Added = []string{"spotify:track:1"}
	report.Failed = []models.TrackFailure{{Title: "Lost", Artist: "Nobody", Kind: models.FailureFetchFailed}}
	m.Update(syncCompleteMsg(report, nil))

	if m.view != ResultView {
		t.Fatalf("expected result view, got %v", m.view)
	}
	view = m.View()
	for _, want := range []string{"Sync Complete", "Added: 1", "Nobody - Lost (fetch_failed)"} {
		if !strings.Contains(view, want) {
			t.Errorf("result view missing %q:\n%s", want, view)
		}
	}
	if m.Report() != report {
		t.Error("Report() should return the finished report")
	}

	if _, cmd := m.Update(keyPress("r")); cmd != nil || m.view != ResultView {
		t.Error("restart should be disabled for a single playlist sync")
	}
}

func TestPlaylistFlow(t *testing.T) {
	engine := &fakeEngine{}
	m := NewModel(context.Background(), engine, nopLoader{}, t.TempDir())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	p := models.NewPlaylist("Road Trip", "", &models.Source{Type: models.OriginSpotify, URL: "https://open.spotify.com/playlist/PL1"}, time.Now())
	m.Update(playlistsLoadedMsg([]playlistItem{{dir: "/music/Road Trip", playlist: p}}, nil))

	if !strings.Contains(m.View(), "Road Trip") {
		t.Errorf("expected playlist in list view, got:\n%s", m.View())
	}

	m.Update(keyPress("enter"))
	if m.view != ConfirmView {
		t.Fatalf("expected confirm view, got %v", m.view)
	}
	if view := m.View(); !strings.Contains(view, "Sync 'Road Trip'?") || !strings.Contains(view, "open.spotify.com") {
		t.Errorf("unexpected confirm view:\n%s", view)
	}

	m.Update(keyPress("n"))
	if m.view != PlaylistListView {
		t.Fatalf("expected list view after declining, got %v", m.view)
	}

	m.Update(keyPress("enter"))
	m.Update(keyPress("y"))
	if m.view != SyncView || len(engine.started) != 1 {
		t.Errorf("expected a started sync, got view %v and %v", m.view, engine.started)
	}

	m.Update(syncCompleteMsg(nil, context.Canceled))
	if view := m.View(); !strings.Contains(view, "Sync stopped") {
		t.Errorf("expected failure message, got:\n%s", view)
	}

	m.Update(keyPress("r"))
	if m.view != PlaylistListView || m.Err() != nil {
		t.Errorf("expected list view with cleared error, got %v %v", m.view, m.Err())
	}
}

func TestPlaylistItem(t *testing.T) {
	synced := time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)
	p := models.NewPlaylist("Road Trip", "", &models.Source{Type: models.OriginSpotify, LastSync: &synced}, synced)
	p.Tracks = []models.Track{{Filename: "a.mp3", Title: "A", Duration: 125}}
	p.Recalculate()

	item := playlistItem{dir: "/x", playlist: p}
	if got := item.Description(); got != "1 tracks • 2:05 • spotify • synced 2025-03-01 09:05" {
		t.Errorf("Description() = %q", got)
	}

	p.Source = nil
	if got := item.Description(); !strings.HasSuffix(got, "local only") {
		t.Errorf("Description() = %q", got)
	}
}

func TestHelpBindings(t *testing.T) {
	keys := newKeyMap()
	tests := []struct {
		view   ViewState
		single bool
		want   []string
	}{
		{PlaylistListView, false, []string{"enter", "q"}},
		{ConfirmView, false, []string{"y", "n", "q"}},
		{SyncView, false, []string{"c"}},
		{ResultView, false, []string{"r", "q"}},
		{ResultView, true, []string{"q"}},
	}

	for _, tt := range tests {
		var got []string
		for _, b := range keys.forView(tt.view, tt.single) {
			got = append(got, b.Help().Key)
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("forView(%v, %v) = %v, want %v", tt.view, tt.single, got, tt.want)
		}
	}
}

func TestStoppedLine(t *testing.T) {
	cancelled := fmt.Errorf("%w: stopped while resolving", shared.ErrCancelled)
	if got := stoppedLine(cancelled); !strings.Contains(got, "Sync cancelled") {
		t.Errorf("stoppedLine(cancelled) = %q", got)
	}
	if got := stoppedLine(shared.ErrRemoteUnavailable); !strings.Contains(got, "Sync stopped: remote listing unavailable") {
		t.Errorf("stoppedLine(remote) = %q", got)
	}
}
