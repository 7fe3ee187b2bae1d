package repositories

import (
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Each pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newRun(path string) *models.SyncRun {
	return models.NewSyncRun("", path, models.OriginSpotify, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestSyncRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := newRun("/music/Road Trip")

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sync run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create keeps caller ID", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun("run-1", "/music/a", models.OriginYouTubeMusic, time.Now())

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sync run: %v", err)
		}
		if run.ID() != "run-1" {
			t.Errorf("expected ID run-1, got %s", run.ID())
		}
	})

	t.Run("Create rejects invalid runs", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		if err := repo.Create(newRun("")); err == nil {
			t.Fatal("expected validation error for empty playlist path")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := newRun("/music/Road Trip")
		if err := repo.Create(run); err != nil {
			t.Fatal(err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get sync run: %v", err)
		}

		if got.PlaylistPath() != "/music/Road Trip" || got.Origin() != models.OriginSpotify {
			t.Errorf("unexpected run %s %s", got.PlaylistPath(), got.Origin())
		}
		if got.State() != models.StateFetchingRemoteListing {
			t.Errorf("expected initial state, got %s", got.State())
		}
		if got.FinishedAt() != nil {
			t.Error("unfinished run should have no finished_at")
		}

		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := newRun("/music/Road Trip")
		if err := repo.Create(run); err != nil {
			t.Fatal(err)
		}

		report := models.NewSyncReport(run.ID(), "Road Trip", run.StartedAt())
		report.Added = []string{"spotify:track:A", "spotify:track:B"}
		report.Failed = []models.TrackFailure{{SourceID: "spotify:track:C", Kind: models.FailureUnresolvable}}
		run.Finish(models.StateDone, report, run.StartedAt().Add(time.Minute))

		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update sync run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatal(err)
		}
		if got.State() != models.StateDone {
			t.Errorf("expected done, got %s", got.State())
		}
		a, u, d, f := got.Counts()
		if a != 2 || u != 0 || d != 0 || f != 1 {
			t.Errorf("unexpected counts %d/%d/%d/%d", a, u, d, f)
		}
		if got.FinishedAt() == nil || !got.FinishedAt().Equal(run.StartedAt().Add(time.Minute)) {
			t.Errorf("unexpected finished_at %v", got.FinishedAt())
		}
	})

	t.Run("Update records failure stage", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := newRun("/music/Road Trip")
		if err := repo.Create(run); err != nil {
			t.Fatal(err)
		}

		run.Fail(models.StateFetchingRemoteListing, shared.ErrRemoteUnavailable, time.Now())
		if err := repo.Update(run); err != nil {
			t.Fatal(err)
		}

		got, _ := repo.Get(run.ID())
		if got.State() != models.StateFailed || got.FailedStage() != "fetching_remote_listing" {
			t.Errorf("unexpected failure %s at %s", got.State(), got.FailedStage())
		}
		if got.ErrorMessage() != shared.ErrRemoteUnavailable.Error() {
			t.Errorf("unexpected error message %q", got.ErrorMessage())
		}
	})

	t.Run("Update missing run", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun("ghost", "/music/a", models.OriginSpotify, time.Now())
		if err := repo.Update(run); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := newRun("/music/a")
		if err := repo.Create(run); err != nil {
			t.Fatal(err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete sync run: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected error when getting deleted run")
		}
		if err := repo.Delete(run.ID()); err == nil {
			t.Error("expected error when deleting twice")
		}
	})

	t.Run("List and Latest", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		for _, path := range []string{"/music/a", "/music/b", "/music/a"} {
			if err := repo.Create(newRun(path)); err != nil {
				t.Fatal(err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].Sequence() != 3 {
			t.Fatalf("expected 3 runs newest first, got %d", len(all))
		}

		byPath, err := repo.List(map[string]any{"playlist_path": "/music/a", "limit": 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(byPath) != 1 || byPath[0].Sequence() != 3 {
			t.Errorf("expected the newest run of /music/a, got %d runs", len(byPath))
		}

		latest, err := repo.Latest("/music/b")
		if err != nil {
			t.Fatal(err)
		}
		if latest.Sequence() != 2 {
			t.Errorf("expected sequence 2, got %d", latest.Sequence())
		}

		if _, err := repo.Latest("/music/none"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}

		done, err := repo.List(map[string]any{"state": "done"})
		if err != nil {
			t.Fatal(err)
		}
		if len(done) != 0 {
			t.Errorf("expected no finished runs, got %d", len(done))
		}
	})
}

func TestNextSequence(t *testing.T) {
	t.Run("hands out distinct numbers", func(t *testing.T) {
		db := setupTestDB(t)

		var wg sync.WaitGroup
		seen := make(chan int, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := withTx(db, func(tx *sql.Tx) error {
					n, err := NextSequence(tx, "sync_runs")
					seen <- n
					return err
				})
				if err != nil {
					t.Errorf("NextSequence() error = %v", err)
				}
			}()
		}
		wg.Wait()
		close(seen)

		got := map[int]bool{}
		for n := range seen {
			if got[n] {
				t.Errorf("sequence %d handed out twice", n)
			}
			got[n] = true
		}
		if len(got) != 10 {
			t.Errorf("expected 10 distinct sequences, got %d", len(got))
		}
	})

	t.Run("rolled back insert keeps the number", func(t *testing.T) {
		db := setupTestDB(t)

		err := withTx(db, func(tx *sql.Tx) error {
			if _, err := NextSequence(tx, "sync_runs"); err != nil {
				return err
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected abort error")
		}

		run := newRun("/music/Road Trip")
		if err := NewSyncRunRepository(db).Create(run); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if run.Sequence() != 1 {
			t.Errorf("Sequence() = %d, want 1", run.Sequence())
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		db := setupTestDB(t)
		err := withTx(db, func(tx *sql.Tx) error {
			_, err := NextSequence(tx, "resolutions")
			return err
		})
		if err == nil {
			t.Error("expected error for a table without a sequence")
		}
	})
}

func TestResolutionRepository(t *testing.T) {
	t.Run("Save and Get", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		c := models.Candidate{Handle: "https://music.youtube.com/watch?v=a", Title: "Alpha", Artist: "X", Duration: 200, Score: 0.9}
		if err := repo.Save("spotify:track:A", c); err != nil {
			t.Fatalf("failed to save resolution: %v", err)
		}

		got, err := repo.Get("spotify:track:A")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || *got != c {
			t.Errorf("got %+v, want %+v", got, c)
		}
	})

	t.Run("Save replaces", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		repo.Save("spotify:track:A", models.Candidate{Handle: "old"})
		if err := repo.Save("spotify:track:A", models.Candidate{Handle: "new"}); err != nil {
			t.Fatal(err)
		}

		got, _ := repo.Get("spotify:track:A")
		if got.Handle != "new" {
			t.Errorf("expected new handle, got %s", got.Handle)
		}
		if n, _ := repo.Count(); n != 1 {
			t.Errorf("expected 1 row, got %d", n)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		got, err := repo.Get("spotify:track:none")
		if err != nil || got != nil {
			t.Errorf("expected (nil, nil), got %v, %v", got, err)
		}
	})

	t.Run("Save requires handle", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		if err := repo.Save("spotify:track:A", models.Candidate{}); err == nil {
			t.Error("expected error for empty handle")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		repo.Save("spotify:track:A", models.Candidate{Handle: "h"})
		if err := repo.Delete("spotify:track:A"); err != nil {
			t.Fatal(err)
		}
		if got, _ := repo.Get("spotify:track:A"); got != nil {
			t.Error("expected resolution to be gone")
		}
		if err := repo.Delete("spotify:track:A"); err != nil {
			t.Errorf("deleting a missing row should not fail: %v", err)
		}
	})
}

func TestResolutionCache(t *testing.T) {
	cache := NewResolutionCache(NewResolutionRepository(setupTestDB(t)))

	if err := cache.Store("spotify:track:A", models.Candidate{Handle: "h", Score: 0.7}); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Lookup("spotify:track:A")
	if err != nil || got == nil || got.Handle != "h" {
		t.Errorf("unexpected lookup %v, %v", got, err)
	}

	var empty *ResolutionCache
	if got, err := empty.Lookup("x"); got != nil || err != nil {
		t.Error("nil cache should miss")
	}
	if err := empty.Store("x", models.Candidate{Handle: "h"}); err != nil {
		t.Error("nil cache store should be a no-op")
	}
}
