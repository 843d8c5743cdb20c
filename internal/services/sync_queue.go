package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/repository"
)

// SyncQueue is the durable outbound work list. Every status change goes
// through the entry state machine before it is written.
type SyncQueue struct {
	store repository.SyncQueueStore
}

// NewSyncQueue creates a queue over store
func NewSyncQueue(store repository.SyncQueueStore) *SyncQueue {
	return &SyncQueue{store: store}
}

// Enqueue persists a new pending entry
func (q *SyncQueue) Enqueue(ctx context.Context, entry *models.SyncQueueEntry) error {
	if entry.Status == "" {
		entry.Status = models.SyncPending
	}
	if err := q.store.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("enqueue %s entry: %w", entry.EntityType, err)
	}
	observability.WithFields(map[string]interface{}{
		"entry_id":    entry.ID,
		"entity_type": entry.EntityType,
		"session_key": entry.SessionKey,
	}).Debug("Queued sync entry")
	return nil
}

// Get returns an entry or ErrQueueEntryNotFound
func (q *SyncQueue) Get(ctx context.Context, id string) (*models.SyncQueueEntry, error) {
	entry, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, models.ErrQueueEntryNotFound
	}
	return entry, nil
}

// Eligible lists entries the engine should work on at now, in creation order
func (q *SyncQueue) Eligible(ctx context.Context, now time.Time) ([]*models.SyncQueueEntry, error) {
	return q.store.ListPending(ctx, now)
}

// List returns entries in a status, or all entries when status is empty
func (q *SyncQueue) List(ctx context.Context, status models.SyncStatus) ([]*models.SyncQueueEntry, error) {
	return q.store.ListAll(ctx, status)
}

// ListBySession returns every entry of a session
func (q *SyncQueue) ListBySession(ctx context.Context, sessionKey string) ([]*models.SyncQueueEntry, error) {
	return q.store.ListBySession(ctx, sessionKey)
}

// Counts returns the number of entries per status
func (q *SyncQueue) Counts(ctx context.Context) (map[models.SyncStatus]int, error) {
	return q.store.CountByStatus(ctx)
}

// transition moves entry to target after checking the state machine
func (q *SyncQueue) transition(ctx context.Context, entry *models.SyncQueueEntry, target models.SyncStatus) error {
	if !entry.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, entry.Status, target)
	}
	prev := entry.Status
	entry.Status = target
	entry.UpdatedAt = time.Now().UTC()
	if err := q.store.UpdateStatus(ctx, entry, prev); err != nil {
		entry.Status = prev
		return err
	}
	return nil
}

// Begin marks an entry as in flight
func (q *SyncQueue) Begin(ctx context.Context, entry *models.SyncQueueEntry) error {
	return q.transition(ctx, entry, models.SyncSyncing)
}

// Complete marks an entry acknowledged by the remote store
func (q *SyncQueue) Complete(ctx context.Context, entry *models.SyncQueueEntry, remoteID string) error {
	entry.RemoteID = remoteID
	entry.LastError = ""
	entry.FailureKind = ""
	entry.NextAttemptAt = nil
	return q.transition(ctx, entry, models.SyncDone)
}

// Fail records a failed attempt. Transient failures are rescheduled at
// nextAttempt until maxAttempts is reached; permanent failures are fatal at once.
func (q *SyncQueue) Fail(ctx context.Context, entry *models.SyncQueueEntry, cause error, kind models.FailureKind, nextAttempt time.Time, maxAttempts int) error {
	entry.Attempts++
	entry.LastError = cause.Error()
	entry.FailureKind = kind

	target := models.SyncError
	if kind == models.FailurePermanent || (maxAttempts > 0 && entry.Attempts >= maxAttempts) {
		target = models.SyncFatalError
		entry.NextAttemptAt = nil
	} else {
		at := nextAttempt.UTC()
		entry.NextAttemptAt = &at
	}
	return q.transition(ctx, entry, target)
}

// Retry re-arms a fatal entry on explicit user request. It is the only way
// out of fatal_error.
func (q *SyncQueue) Retry(ctx context.Context, id string) (*models.SyncQueueEntry, error) {
	entry, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.Attempts = 0
	entry.LastError = ""
	entry.FailureKind = ""
	entry.NextAttemptAt = nil
	if err := q.transition(ctx, entry, models.SyncPending); err != nil {
		return nil, err
	}

	observability.WithField("entry_id", id).Info("Sync entry re-armed by user")
	return entry, nil
}

// DropUnstarted removes a photo entry that has not been picked up yet.
// An entry that is in flight or done is left alone and false is returned.
func (q *SyncQueue) DropUnstarted(ctx context.Context, sessionKey, localID string) (bool, error) {
	entries, err := q.store.ListBySession(ctx, sessionKey)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.EntityType != models.EntityPhoto || entry.LocalID != localID {
			continue
		}
		switch entry.Status {
		case models.SyncPending, models.SyncError, models.SyncFatalError:
			return true, q.store.Delete(ctx, entry.ID)
		}
		return false, nil
	}
	return false, nil
}

// Remove deletes one entry regardless of its status
func (q *SyncQueue) Remove(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}

// DropSession removes every entry of a session that is not in flight
func (q *SyncQueue) DropSession(ctx context.Context, sessionKey string) error {
	entries, err := q.store.ListBySession(ctx, sessionKey)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Status == models.SyncSyncing {
			continue
		}
		if err := q.store.Delete(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

// PurgeDone removes the acknowledged entries of a session
func (q *SyncQueue) PurgeDone(ctx context.Context, sessionKey string) (int64, error) {
	return q.store.DeleteDone(ctx, sessionKey)
}

// RecoverInterrupted returns entries left in syncing by a crash to pending
func (q *SyncQueue) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := q.store.ResetSyncing(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		observability.WithField("entries", n).Warn("Recovered interrupted sync entries")
	}
	return n, nil
}
