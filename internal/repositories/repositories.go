package repositories

import (
	"database/sql"
	"fmt"
)

// sequenced lists the tables that carry a "<table>_sequence" counter row.
var sequenced = map[string]bool{"sync_runs": true}

// NextSequence increments and returns the counter for table inside tx, so a rolled back insert
// does not consume a number.
func NextSequence(tx *sql.Tx, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("table %q has no sequence", table)
	}

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := tx.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
