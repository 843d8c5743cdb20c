package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

const syncQueueColumns = `id, entity_type, local_id, session_key, remote_id, payload, attempts,
	status, last_error, failure_kind, next_attempt_at, created_at, updated_at`

// SyncQueueRepository handles sync queue persistence
type SyncQueueRepository struct {
	db *sql.DB
}

// NewSyncQueueRepository creates a new SyncQueueRepository
func NewSyncQueueRepository(db *sql.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

// Enqueue appends an entry after every existing one
func (r *SyncQueueRepository) Enqueue(ctx context.Context, entry *models.SyncQueueEntry) error {
	ctx, span := observability.StartDBSpan(ctx, "INSERT", "sync_queue")
	defer span.End()

	query := `INSERT INTO sync_queue (id, seq, entity_type, local_id, session_key, remote_id, payload,
			attempts, status, last_error, failure_kind, next_attempt_at, created_at, updated_at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sync_queue), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.EntityType),
		entry.LocalID,
		entry.SessionKey,
		nullString(entry.RemoteID),
		string(entry.Payload),
		entry.Attempts,
		string(entry.Status),
		nullString(entry.LastError),
		nullString(string(entry.FailureKind)),
		entry.NextAttemptAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	observability.RecordError(span, err)
	return err
}

// Get retrieves an entry by ID
func (r *SyncQueueRepository) Get(ctx context.Context, id string) (*models.SyncQueueEntry, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sync_queue")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT `+syncQueueColumns+` FROM sync_queue WHERE id = $1`, id)
	entry, err := scanSyncQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return entry, nil
}

// ListPending returns entries the engine may pick up at now, in creation order
func (r *SyncQueueRepository) ListPending(ctx context.Context, now time.Time) ([]*models.SyncQueueEntry, error) {
	entries, err := r.list(ctx, `WHERE status IN ($1, $2) ORDER BY seq`,
		string(models.SyncPending), string(models.SyncError))
	if err != nil {
		return nil, err
	}

	eligible := entries[:0]
	for _, entry := range entries {
		if entry.IsEligible(now) {
			eligible = append(eligible, entry)
		}
	}
	return eligible, nil
}

// ListBySession returns every entry for a session in creation order
func (r *SyncQueueRepository) ListBySession(ctx context.Context, sessionKey string) ([]*models.SyncQueueEntry, error) {
	return r.list(ctx, `WHERE session_key = $1 ORDER BY seq`, sessionKey)
}

// ListAll returns every entry, optionally filtered by status
func (r *SyncQueueRepository) ListAll(ctx context.Context, status models.SyncStatus) ([]*models.SyncQueueEntry, error) {
	if status == "" {
		return r.list(ctx, `ORDER BY seq`)
	}
	return r.list(ctx, `WHERE status = $1 ORDER BY seq`, string(status))
}

func (r *SyncQueueRepository) list(ctx context.Context, where string, args ...interface{}) ([]*models.SyncQueueEntry, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sync_queue")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT `+syncQueueColumns+` FROM sync_queue `+where, args...)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	entries := []*models.SyncQueueEntry{}
	for rows.Next() {
		entry, err := scanSyncQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateStatus writes the mutable fields of an entry if it is still in
// status prev. An entry another worker moved on first gives ErrEntryClaimed.
func (r *SyncQueueRepository) UpdateStatus(ctx context.Context, entry *models.SyncQueueEntry, prev models.SyncStatus) error {
	ctx, span := observability.StartDBSpan(ctx, "UPDATE", "sync_queue")
	defer span.End()

	query := `UPDATE sync_queue SET
			remote_id = $1, attempts = $2, status = $3, last_error = $4,
			failure_kind = $5, next_attempt_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9`

	result, err := r.db.ExecContext(ctx, query,
		nullString(entry.RemoteID),
		entry.Attempts,
		string(entry.Status),
		nullString(entry.LastError),
		nullString(string(entry.FailureKind)),
		entry.NextAttemptAt,
		entry.UpdatedAt,
		entry.ID,
		string(prev),
	)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil || n > 0 {
		return err
	}

	current, err := r.Get(ctx, entry.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return models.ErrQueueEntryNotFound
	}
	return fmt.Errorf("%w: %s is %s", models.ErrEntryClaimed, entry.ID, current.Status)
}

// Delete removes an entry
func (r *SyncQueueRepository) Delete(ctx context.Context, id string) error {
	ctx, span := observability.StartDBSpan(ctx, "DELETE", "sync_queue")
	defer span.End()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = $1`, id)
	observability.RecordError(span, err)
	return err
}

// DeleteDone purges acknowledged entries of a session
func (r *SyncQueueRepository) DeleteDone(ctx context.Context, sessionKey string) (int64, error) {
	ctx, span := observability.StartDBSpan(ctx, "DELETE", "sync_queue")
	defer span.End()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE session_key = $1 AND status = $2`,
		sessionKey, string(models.SyncDone))
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}
	return result.RowsAffected()
}

// ResetSyncing moves entries left in syncing by a crash back to pending
func (r *SyncQueueRepository) ResetSyncing(ctx context.Context) (int64, error) {
	ctx, span := observability.StartDBSpan(ctx, "UPDATE", "sync_queue")
	defer span.End()

	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = $1, updated_at = $2 WHERE status = $3`,
		string(models.SyncPending), time.Now().UTC(), string(models.SyncSyncing))
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}
	return result.RowsAffected()
}

// CountByStatus returns the number of entries in each status
func (r *SyncQueueRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "sync_queue")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.SyncStatus(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncQueueEntry(row rowScanner) (*models.SyncQueueEntry, error) {
	var entry models.SyncQueueEntry
	var entityType, status, payload string
	var remoteID, lastError, failureKind sql.NullString

	err := row.Scan(
		&entry.ID,
		&entityType,
		&entry.LocalID,
		&entry.SessionKey,
		&remoteID,
		&payload,
		&entry.Attempts,
		&status,
		&lastError,
		&failureKind,
		&entry.NextAttemptAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.EntityType = models.EntityType(entityType)
	entry.Status = models.SyncStatus(status)
	entry.Payload = []byte(payload)
	entry.RemoteID = remoteID.String
	entry.LastError = lastError.String
	entry.FailureKind = models.FailureKind(failureKind.String)
	return &entry, nil
}
