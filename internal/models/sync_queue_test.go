package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStatusTransitions(t *testing.T) {
	tests := []struct {
		from     SyncStatus
		to       SyncStatus
		expected bool
	}{
		{SyncPending, SyncSyncing, true},
		{SyncPending, SyncDone, false},
		{SyncSyncing, SyncDone, true},
		{SyncSyncing, SyncError, true},
		{SyncSyncing, SyncFatalError, true},
		{SyncSyncing, SyncPending, true},
		{SyncError, SyncSyncing, true},
		{SyncError, SyncFatalError, true},
		{SyncError, SyncPending, false},
		{SyncFatalError, SyncPending, true},
		{SyncFatalError, SyncSyncing, false},
		{SyncDone, SyncPending, false},
		{SyncDone, SyncSyncing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewSyncQueueEntry(t *testing.T) {
	payload := PhotoUploadPayload{PhotoID: "p1", URI: "p1", Phase: PhasePre, Category: CategoryVisual}

	entry, err := NewSyncQueueEntry(EntityPhoto, "eq-1:adhoc", "p1", payload)

	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, SyncPending, entry.Status)
	assert.Equal(t, 0, entry.Attempts)

	var decoded PhotoUploadPayload
	require.NoError(t, entry.DecodePayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestSyncQueueEntryEligibility(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		status   SyncStatus
		next     *time.Time
		expected bool
	}{
		{"pending", SyncPending, nil, true},
		{"error without schedule", SyncError, nil, true},
		{"error due", SyncError, &past, true},
		{"error backing off", SyncError, &future, false},
		{"syncing", SyncSyncing, nil, false},
		{"done", SyncDone, nil, false},
		{"fatal", SyncFatalError, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &SyncQueueEntry{Status: tt.status, NextAttemptAt: tt.next}
			assert.Equal(t, tt.expected, entry.IsEligible(now))
		})
	}
}

func TestMaintenanceResponsePayload(t *testing.T) {
	s, err := NewMaintenanceSession("eq-1", "mt-1")
	require.NoError(t, err)
	s.AppendPhoto(SectionPreVisual, PhotoItem{ID: "a", URI: "a"})
	s.AppendPhoto(SectionPostVisual, PhotoItem{ID: "b", URI: "b"})

	payload := NewMaintenanceResponsePayload(s)

	assert.Equal(t, []string{"a", "b"}, payload.PhotoIDs())
	assert.Equal(t, "eq-1", payload.EquipmentID)

	// snapshot is not affected by later edits of the session
	s.PrePhotos[0].Status = PhotoDone
	assert.NotEqual(t, PhotoDone, payload.PrePhotos[0].Status)
}
