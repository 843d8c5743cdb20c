package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/remote"
	"github.com/fieldsync/inspector/internal/repository"
)

func newTestQueue(t *testing.T) *SyncQueue {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSyncQueue(repository.NewSyncQueueRepository(db))
}

func enqueuePhotoEntry(t *testing.T, q *SyncQueue, sessionKey, photoID string) *models.SyncQueueEntry {
	t.Helper()
	entry, err := models.NewSyncQueueEntry(models.EntityPhoto, sessionKey, photoID, models.PhotoUploadPayload{PhotoID: photoID, URI: photoID})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), entry))
	return entry
}

func TestSyncQueue_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("pending to done", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

		require.NoError(t, q.Begin(ctx, entry))
		require.NoError(t, q.Complete(ctx, entry, "https://cdn/a.jpg"))

		got, err := q.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncDone, got.Status)
		assert.Equal(t, "https://cdn/a.jpg", got.RemoteID)
	})

	t.Run("transient failure is rescheduled", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

		require.NoError(t, q.Begin(ctx, entry))
		require.NoError(t, q.Fail(ctx, entry, errors.New("timeout"), models.FailureTransient, now.Add(time.Minute), 3))

		got, err := q.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncError, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "timeout", got.LastError)
		require.NotNil(t, got.NextAttemptAt)

		eligible, err := q.Eligible(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, eligible)

		eligible, err = q.Eligible(ctx, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Len(t, eligible, 1)
	})

	t.Run("attempts exhausted become fatal", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

		for i := 0; i < 2; i++ {
			require.NoError(t, q.Begin(ctx, entry))
			require.NoError(t, q.Fail(ctx, entry, errors.New("timeout"), models.FailureTransient, now, 2))
		}
		assert.Equal(t, models.SyncFatalError, entry.Status)
		assert.Nil(t, entry.NextAttemptAt)

		eligible, err := q.Eligible(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, eligible)
	})

	t.Run("permanent failure is fatal at once", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

		require.NoError(t, q.Begin(ctx, entry))
		require.NoError(t, q.Fail(ctx, entry, errors.New("rejected"), models.FailurePermanent, now, 5))
		assert.Equal(t, models.SyncFatalError, entry.Status)
		assert.Equal(t, models.FailurePermanent, entry.FailureKind)
	})

	t.Run("retry re-arms a fatal entry only", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

		_, err := q.Retry(ctx, entry.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		require.NoError(t, q.Begin(ctx, entry))
		require.NoError(t, q.Fail(ctx, entry, errors.New("rejected"), models.FailurePermanent, now, 5))

		got, err := q.Retry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
		assert.Empty(t, got.LastError)
	})

	t.Run("done cannot go back", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")
		require.NoError(t, q.Begin(ctx, entry))
		require.NoError(t, q.Complete(ctx, entry, "url"))

		assert.ErrorIs(t, q.Begin(ctx, entry), models.ErrInvalidTransition)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := newTestQueue(t).Get(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrQueueEntryNotFound)
	})
}

func TestSyncQueue_Housekeeping(t *testing.T) {
	ctx := context.Background()

	t.Run("recover interrupted resets syncing to pending", func(t *testing.T) {
		q := newTestQueue(t)
		entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")
		require.NoError(t, q.Begin(ctx, entry))

		n, err := q.RecoverInterrupted(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := q.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncPending, got.Status)
	})

	t.Run("drop unstarted skips in-flight entries", func(t *testing.T) {
		q := newTestQueue(t)
		enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")
		busy := enqueuePhotoEntry(t, q, "eq-1:adhoc", "b.jpg")
		require.NoError(t, q.Begin(ctx, busy))

		dropped, err := q.DropUnstarted(ctx, "eq-1:adhoc", "a.jpg")
		require.NoError(t, err)
		assert.True(t, dropped)

		dropped, err = q.DropUnstarted(ctx, "eq-1:adhoc", "b.jpg")
		require.NoError(t, err)
		assert.False(t, dropped)

		entries, err := q.ListBySession(ctx, "eq-1:adhoc")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("purge done keeps open work", func(t *testing.T) {
		q := newTestQueue(t)
		done := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")
		enqueuePhotoEntry(t, q, "eq-1:adhoc", "b.jpg")
		require.NoError(t, q.Begin(ctx, done))
		require.NoError(t, q.Complete(ctx, done, "url"))

		n, err := q.PurgeDone(ctx, "eq-1:adhoc")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		counts, err := q.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[models.SyncPending])
		assert.Equal(t, 0, counts[models.SyncDone])
	})
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected models.FailureKind
	}{
		{"timeout", context.DeadlineExceeded, models.FailureTransient},
		{"unknown", errors.New("connection reset"), models.FailureTransient},
		{"server error", &remote.APIError{StatusCode: http.StatusBadGateway}, models.FailureTransient},
		{"unauthorized", &remote.APIError{StatusCode: http.StatusUnauthorized}, models.FailurePermanent},
		{"wrapped rejection", fmt.Errorf("upload: %w", &remote.APIError{StatusCode: http.StatusUnprocessableEntity}), models.FailurePermanent},
		{"missing file", fmt.Errorf("%w: a.jpg", models.ErrPhotoFileMissing), models.FailurePermanent},
		{"corrupt file", models.ErrPhotoCorrupt, models.FailurePermanent},
		{"marked permanent", backoff.Permanent(errors.New("bad payload")), models.FailurePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyFailure(tt.err))
		})
	}
}

func TestSyncQueue_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	entry := enqueuePhotoEntry(t, q, "eq-1:adhoc", "a.jpg")

	// two workers listed the same pending entry
	mine, theirs := *entry, *entry
	require.NoError(t, q.Begin(ctx, &theirs))

	err := q.Begin(ctx, &mine)
	assert.ErrorIs(t, err, models.ErrEntryClaimed)
	assert.Equal(t, models.SyncPending, mine.Status)

	got, err := q.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSyncing, got.Status)
}
