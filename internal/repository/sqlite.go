package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldsync/inspector/internal/observability"
)

// NewSQLiteDB creates and initializes the on-device SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// One writer at a time keeps snapshot writes serialized
	db.SetMaxOpenConns(1)

	// WAL keeps the last committed snapshot readable if the process dies mid-write
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	observability.SetDBSystem("sqlite")
	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- In-progress inspections, one full JSON snapshot per key
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		equipment_id TEXT NOT NULL,
		property_id TEXT,
		current_step TEXT NOT NULL,
		is_uploaded BOOLEAN NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_equipment_id ON sessions(equipment_id);

	-- Outbound work awaiting upload
	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		local_id TEXT NOT NULL,
		session_key TEXT NOT NULL,
		remote_id TEXT,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		last_error TEXT,
		failure_kind TEXT,
		next_attempt_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, seq);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_session_key ON sync_queue(session_key);

	-- Read replica of remote equipment
	CREATE TABLE IF NOT EXISTS equipment (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT,
		location TEXT,
		circuits TEXT NOT NULL DEFAULT '[]',
		deleted BOOLEAN NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_equipment_property_id ON equipment(property_id);

	-- Finalized maintenance history
	CREATE TABLE IF NOT EXISTS maintenance_records (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		equipment_id TEXT NOT NULL,
		maintenance_id TEXT,
		local_ref TEXT,
		status TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_maintenance_records_property_id ON maintenance_records(property_id);
	CREATE INDEX IF NOT EXISTS idx_maintenance_records_equipment_id ON maintenance_records(equipment_id);

	-- Last successful pull per property
	CREATE TABLE IF NOT EXISTS pull_state (
		property_id TEXT PRIMARY KEY,
		last_pulled_at DATETIME,
		pull_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
