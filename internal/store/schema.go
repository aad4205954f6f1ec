// Package store implements the relational writer: the cards/card_properties
// schema, versioned migrations, and transactional batch-insert semantics.
// The driver is modernc.org/sqlite, a pure-Go implementation, avoiding a
// cgo dependency for the SQLite binding.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"isometry/internal/logging"
)

// Store owns the SQLite connection backing the cards/card_properties schema.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open initializes the SQLite database at path, applying a single-writer
// pragma sequence (busy_timeout, WAL, synchronous=NORMAL) and running schema
// creation + migrations.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryStore).WarnFields("failed to set busy_timeout", zapErr(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).WarnFields("failed to set journal_mode=WAL", zapErr(err))
	}
	// synchronous=NORMAL is safe under WAL, which already gives crash
	// recovery, and gives a large write-speedup over the FULL default.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.Get(logging.CategoryStore).WarnFields("failed to set synchronous=NORMAL", zapErr(err))
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initialize creates the cards/card_properties tables (and the edges,
// facets, settings, and sync_state tables other collaborators own) then runs
// RunMigrations to bring any pre-existing database forward to
// CurrentSchemaVersion.
func (s *Store) initialize() error {
	const cardsTable = `
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		card_type TEXT,
		name TEXT NOT NULL,
		content TEXT,
		summary TEXT,
		latitude REAL,
		longitude REAL,
		location_name TEXT,
		location_address TEXT,
		created_at TEXT NOT NULL,
		modified_at TEXT NOT NULL,
		due_at TEXT,
		completed_at TEXT,
		event_start TEXT,
		event_end TEXT,
		folder TEXT,
		tags TEXT,
		status TEXT,
		priority INTEGER DEFAULT 0,
		importance INTEGER DEFAULT 0,
		sort_order INTEGER DEFAULT 0,
		grid_x INTEGER,
		grid_y INTEGER,
		source TEXT,
		source_id TEXT,
		source_url TEXT,
		deleted_at TEXT,
		version INTEGER DEFAULT 1
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_source_unique ON cards(source, source_id)
		WHERE source IS NOT NULL AND source_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_cards_card_type ON cards(card_type);
	CREATE INDEX IF NOT EXISTS idx_cards_deleted_at ON cards(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_cards_folder ON cards(folder);
	`

	const cardPropertiesTable = `
	CREATE TABLE IF NOT EXISTS card_properties (
		id TEXT PRIMARY KEY,
		card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT,
		value_type TEXT,
		value_string TEXT,
		value_number REAL,
		value_boolean INTEGER,
		value_json TEXT,
		UNIQUE(card_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_card_properties_card_id ON card_properties(card_id);
	CREATE INDEX IF NOT EXISTS idx_card_properties_key ON card_properties(key);
	`

	// Collaborator-owned tables: declared here so the schema is a stable
	// contract, but no component in this core reads or writes them.
	const collaboratorTables = `
	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		from_card_id TEXT,
		to_card_id TEXT,
		relation TEXT,
		metadata TEXT
	);
	CREATE TABLE IF NOT EXISTS facets (
		id TEXT PRIMARY KEY,
		name TEXT,
		axis TEXT,
		source_column TEXT,
		data_type TEXT,
		time_format TEXT,
		options TEXT,
		sort_order TEXT
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	CREATE TABLE IF NOT EXISTS sync_state (
		id TEXT PRIMARY KEY,
		state TEXT,
		updated_at TEXT
	);
	`

	for _, stmt := range []string{cardsTable, cardPropertiesTable, collaboratorTables} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// DB returns the underlying *sql.DB, used (e.g. by cmd/isocore's
// storeRunner) to execute built queries against the same connection.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the filesystem path the store was opened against, the kind
// of path subscribe.NewManager takes to watch the database file.
func (s *Store) Path() string { return s.dbPath }

// Close closes the underlying connection.
func (s *Store) Close() error {
	logging.Store("closing store at %s", s.dbPath)
	return s.db.Close()
}

func zapErr(err error) logging.Field { return logging.ErrField(err) }
