package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
)

// ResolutionRepository remembers the candidate that produced each stored track.
//
// Rows are keyed by source id; saving again replaces the previous choice.
type ResolutionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewResolutionRepository creates a new ResolutionRepository with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db, now: time.Now}
}

// Get returns the candidate stored for sourceID, or (nil, nil) when there is none.
func (r *ResolutionRepository) Get(sourceID string) (*models.Candidate, error) {
	query := `
		SELECT handle, title, artist, duration, score
		FROM resolutions
		WHERE source_id = ?
	`

	var c models.Candidate
	err := r.db.QueryRow(query, sourceID).Scan(&c.Handle, &c.Title, &c.Artist, &c.Duration, &c.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resolution: %w", err)
	}
	return &c, nil
}

// Save upserts the candidate chosen for sourceID.
func (r *ResolutionRepository) Save(sourceID string, c models.Candidate) error {
	if sourceID == "" || c.Handle == "" {
		return fmt.Errorf("resolution requires a source id and a handle")
	}

	now := r.now()
	query := `
		INSERT INTO resolutions (source_id, handle, title, artist, duration, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			handle = excluded.handle,
			title = excluded.title,
			artist = excluded.artist,
			duration = excluded.duration,
			score = excluded.score,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, sourceID, c.Handle, c.Title, c.Artist, c.Duration, c.Score, now, now); err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

// Delete forgets the choice for sourceID. Deleting a missing row is not an error.
func (r *ResolutionRepository) Delete(sourceID string) error {
	if _, err := r.db.Exec(`DELETE FROM resolutions WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}
	return nil
}

// Count returns the number of remembered resolutions.
func (r *ResolutionRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM resolutions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resolutions: %w", err)
	}
	return n, nil
}

// ResolutionCache adapts [ResolutionRepository] to the resolver's Cache and the coordinator's store.
//
// A nil repository makes every lookup a miss and every store a no-op.
type ResolutionCache struct {
	repo *ResolutionRepository
}

// NewResolutionCache creates a new ResolutionCache with the given repository
func NewResolutionCache(repo *ResolutionRepository) *ResolutionCache {
	return &ResolutionCache{repo: repo}
}

// Lookup implements resolver.Cache.
func (a *ResolutionCache) Lookup(sourceID string) (*models.Candidate, error) {
	if a == nil || a.repo == nil {
		return nil, nil
	}
	return a.repo.Get(sourceID)
}

// Store records the candidate a track was fetched from.
func (a *ResolutionCache) Store(sourceID string, c models.Candidate) error {
	if a == nil || a.repo == nil || sourceID == "" {
		return nil
	}
	return a.repo.Save(sourceID, c)
}
