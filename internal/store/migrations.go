package store

import (
	"database/sql"
	"fmt"

	"isometry/internal/logging"
)

// CurrentSchemaVersion tracks the cards/card_properties schema generation.
// v1: minimal cards table, no typed property columns.
// v2: richer card_properties typed columns (value_string/value_number/
// value_boolean/value_json) alongside the legacy value column.
const CurrentSchemaVersion = 2

// columnMigration adds one column to one table if it is missing.
type columnMigration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []columnMigration{
	{"card_properties", "value_string", "TEXT"},
	{"card_properties", "value_number", "REAL"},
	{"card_properties", "value_boolean", "INTEGER"},
	{"card_properties", "value_json", "TEXT"},
	{"cards", "grid_x", "INTEGER"},
	{"cards", "grid_y", "INTEGER"},
}

// RunMigrations brings a pre-existing database forward by adding any
// missing columns. It is idempotent: running it twice against the same
// database is a no-op the second time.
func RunMigrations(db *sql.DB) error {
	for _, m := range pendingMigrations {
		has, err := hasColumn(db, m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("checking column %s.%s: %w", m.Table, m.Column, err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", m.Table, m.Column, err)
		}
		logging.StoreDebug("migrated: added column %s.%s", m.Table, m.Column)
	}
	return nil
}

// hasColumn inspects a table's PRAGMA table_info to see if a column already
// exists, so migrations never fail by re-adding a column.
func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
