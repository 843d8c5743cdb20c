package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/models"
)

func TestCaptureSweeper(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	h.seedPanel(t, "eq-1")
	key := models.SessionKey("eq-1", "")

	kept := h.capture(t, key, models.SectionPreVisual, "")
	orphan, err := h.store.Store(bytes.NewReader([]byte("left behind")), "IMG.jpg", time.Now(), 11)
	require.NoError(t, err)

	sweeper := NewCaptureSweeper(h.repo, h.queue, h.store, time.Hour)

	t.Run("fresh files are kept", func(t *testing.T) {
		res, err := sweeper.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.FilesScanned)
		assert.Empty(t, res.Orphans)
		assert.True(t, h.store.Exists(orphan))
	})

	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	t.Run("dry run reports without removing", func(t *testing.T) {
		res, err := sweeper.Sweep(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []string{orphan}, res.Orphans)
		assert.Zero(t, res.Removed)
		assert.True(t, h.store.Exists(orphan))
	})

	t.Run("removes only unreferenced files", func(t *testing.T) {
		res, err := sweeper.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Removed)
		assert.False(t, h.store.Exists(orphan))
		assert.True(t, h.store.Exists(kept.URI))
	})

	t.Run("files of unfinished uploads survive their session", func(t *testing.T) {
		_, err := h.sessions.RemovePhoto(ctx, key, models.SectionPreVisual, kept.ID)
		require.NoError(t, err)

		// the pending entry was dropped together with the file
		assert.False(t, h.store.Exists(kept.URI))

		photo := h.capture(t, key, models.SectionPreVisual, "")
		entries, err := h.queue.ListBySession(ctx, key)
		require.NoError(t, err)
		for _, entry := range entries {
			if entry.LocalID == photo.ID {
				require.NoError(t, h.queue.Begin(ctx, entry))
			}
		}
		_, err = h.sessions.RemovePhoto(ctx, key, models.SectionPreVisual, photo.ID)
		require.NoError(t, err)

		res, err := sweeper.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, res.Removed)
		assert.True(t, h.store.Exists(photo.URI))
	})
}
