// package repositories persists the local track cache and the batch job history.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/mtx/internal/shared"
)

// sequenced lists the tables that own a "<table>_sequence" counter.
var sequenced = map[string]bool{
	"tracks":     true,
	"batch_jobs": true,
}

// NextSequence increments and returns the counter of table in a single statement.
//
// Sequences order cached rows by insertion and are never shown to the user.
func NextSequence(db *sql.DB, table string) (int, error) {
	if !sequenced[table] {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// nullTime converts an optional timestamp for a nullable column.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
