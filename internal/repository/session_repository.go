package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

// SessionRepository stores each session as one JSON snapshot row
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get retrieves a session snapshot by key
func (r *SessionRepository) Get(ctx context.Context, key string) (*models.MaintenanceSession, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sessions")
	defer span.End()

	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE session_key = $1`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	session, err := decodeSession(data)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCorruptSession, key, err)
	}
	return session, nil
}

// Set writes the complete snapshot inside a transaction
func (r *SessionRepository) Set(ctx context.Context, key string, session *models.MaintenanceSession) (err error) {
	ctx, span := observability.StartDBSpan(ctx, "UPSERT", "sessions")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO sessions (session_key, equipment_id, property_id, current_step, is_uploaded, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_key) DO UPDATE SET
			equipment_id = EXCLUDED.equipment_id,
			property_id = EXCLUDED.property_id,
			current_step = EXCLUDED.current_step,
			is_uploaded = EXCLUDED.is_uploaded,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	if _, err = tx.ExecContext(ctx, query,
		key,
		session.EquipmentID,
		nullString(session.PropertyID),
		string(session.CurrentStep),
		session.IsUploaded,
		string(data),
		session.LastUpdated,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a session snapshot
func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	ctx, span := observability.StartDBSpan(ctx, "DELETE", "sessions")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = $1`, key)
	observability.RecordError(span, err)
	return err
}

// List returns every readable session, most recently updated first.
// Rows that cannot be decoded are skipped and logged.
func (r *SessionRepository) List(ctx context.Context) ([]*models.MaintenanceSession, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sessions")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT session_key, data FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	sessions := []*models.MaintenanceSession{}
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		session, err := decodeSession(data)
		if err != nil {
			observability.WithContext(ctx).WithField("session_key", key).WithError(err).
				Warn("Skipping unreadable session snapshot")
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func decodeSession(data string) (*models.MaintenanceSession, error) {
	var session models.MaintenanceSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	if session.SessionKey == "" || session.EquipmentID == "" {
		return nil, fmt.Errorf("snapshot is missing its identity")
	}
	session.EnsureMaps()
	return &session, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
