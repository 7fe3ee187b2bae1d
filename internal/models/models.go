package models

import "time"

// Entity is a row in the history database. [SyncRun] is the only one: playlists and tracks live in
// their folder's playlist.json and are never copied into SQLite.
type Entity interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the CRUD surface of one history table. Delete is a soft delete; List filters on
// table-specific criteria keys and skips soft-deleted rows.
type Repository[T Entity] interface {
	Create(entity T) error
	Get(id string) (T, error)
	Update(entity T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
