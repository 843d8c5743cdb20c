package repository

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/fieldsync/inspector/internal/observability"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection.
// Used when the agent runs on a shared depot host instead of a device.
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	observability.SetDBSystem("postgresql")
	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		equipment_id TEXT NOT NULL,
		property_id TEXT,
		current_step TEXT NOT NULL,
		is_uploaded BOOLEAN NOT NULL DEFAULT FALSE,
		data TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_equipment_id ON sessions(equipment_id);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		seq BIGINT NOT NULL,
		entity_type TEXT NOT NULL,
		local_id TEXT NOT NULL,
		session_key TEXT NOT NULL,
		remote_id TEXT,
		payload TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		last_error TEXT,
		failure_kind TEXT,
		next_attempt_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, seq);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_session_key ON sync_queue(session_key);

	CREATE TABLE IF NOT EXISTS equipment (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT,
		location TEXT,
		circuits TEXT NOT NULL DEFAULT '[]',
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_equipment_property_id ON equipment(property_id);

	CREATE TABLE IF NOT EXISTS maintenance_records (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		equipment_id TEXT NOT NULL,
		maintenance_id TEXT,
		local_ref TEXT,
		status TEXT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_maintenance_records_property_id ON maintenance_records(property_id);
	CREATE INDEX IF NOT EXISTS idx_maintenance_records_equipment_id ON maintenance_records(equipment_id);

	CREATE TABLE IF NOT EXISTS pull_state (
		property_id TEXT PRIMARY KEY,
		last_pulled_at TIMESTAMPTZ,
		pull_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
