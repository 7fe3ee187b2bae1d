package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

const syncRunColumns = `
	id, sequence, playlist_path, origin, state, failed_stage,
	added, updated, removed, failed, error,
	started_at, finished_at, created_at, updated_at, deleted_at
`

// SyncRunRepository implements models.Repository[*models.SyncRun] for run history.
type SyncRunRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ models.Repository[*models.SyncRun] = (*SyncRunRepository)(nil)

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db, now: time.Now}
}

// Create inserts a run with the next sequence. An ID is generated when the run has none.
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO sync_runs (` + syncRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	return withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(tx, "sync_runs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		added, updated, removed, failed := run.Counts()
		_, err = tx.Exec(query,
			run.ID(),
			sequence,
			run.PlaylistPath(),
			string(run.Origin()),
			run.State().String(),
			run.FailedStage(),
			added, updated, removed, failed,
			run.ErrorMessage(),
			run.StartedAt(),
			run.FinishedAt(),
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sync run: %w", err)
		}
		run.SetSequence(sequence)
		return nil
	})
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanSyncRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Latest returns the most recent run for the playlist folder at path.
func (r *SyncRunRepository) Latest(playlistPath string) (*models.SyncRun, error) {
	query := `
		SELECT ` + syncRunColumns + `
		FROM sync_runs
		WHERE playlist_path = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`

	run, err := scanSyncRun(r.db.QueryRow(query, playlistPath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs for %s", shared.ErrRunNotFound, playlistPath)
	}
	return run, err
}

// Update writes the state, counts and failure columns of run.
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := r.now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET state = ?, failed_stage = ?, added = ?, updated = ?, removed = ?, failed = ?,
			error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	added, updated, removed, failed := run.Counts()
	result, err := r.db.Exec(query,
		run.State().String(),
		run.FailedStage(),
		added, updated, removed, failed,
		run.ErrorMessage(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	return expectAffected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	query := `
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves runs matching criteria, newest first.
//
// Supported criteria: "playlist_path" (string), "state" (string) and "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if path, ok := criteria["playlist_path"].(string); ok && path != "" {
		query += " AND playlist_path = ?"
		args = append(args, path)
	}

	if state, ok := criteria["state"].(string); ok && state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(row rowScanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		playlistPath string
		origin       string
		state        string
		failedStage  string
		added        int
		updated      int
		removed      int
		failed       int
		errMessage   string
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &playlistPath, &origin, &state, &failedStage,
		&added, &updated, &removed, &failed, &errMessage,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	st, ok := models.ParseRunState(state)
	if !ok {
		return nil, fmt.Errorf("sync run %s has unknown state %q", id, state)
	}

	run := models.NewSyncRun(id, playlistPath, models.Origin(origin), startedAt)
	run.SetSequence(sequence)
	run.SetState(st)
	run.SetFailure(failedStage, errMessage)
	run.SetCounts(added, updated, removed, failed)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted", shared.ErrRunNotFound, id)
	}
	return nil
}
