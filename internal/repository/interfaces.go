package repository

import (
	"context"
	"time"

	"github.com/fieldsync/inspector/internal/models"
)

// SessionStore persists complete session snapshots by key.
// Get returns (nil, nil) when the key is absent and ErrCorruptSession when
// the stored value cannot be decoded.
type SessionStore interface {
	Get(ctx context.Context, key string) (*models.MaintenanceSession, error)
	Set(ctx context.Context, key string, session *models.MaintenanceSession) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*models.MaintenanceSession, error)
}

// SyncQueueStore persists outbound work in creation order
type SyncQueueStore interface {
	Enqueue(ctx context.Context, entry *models.SyncQueueEntry) error
	Get(ctx context.Context, id string) (*models.SyncQueueEntry, error)
	ListPending(ctx context.Context, now time.Time) ([]*models.SyncQueueEntry, error)
	ListBySession(ctx context.Context, sessionKey string) ([]*models.SyncQueueEntry, error)
	ListAll(ctx context.Context, status models.SyncStatus) ([]*models.SyncQueueEntry, error)
	UpdateStatus(ctx context.Context, entry *models.SyncQueueEntry, prev models.SyncStatus) error
	Delete(ctx context.Context, id string) error
	DeleteDone(ctx context.Context, sessionKey string) (int64, error)
	ResetSyncing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
}

// EquipmentStore is the local equipment mirror
type EquipmentStore interface {
	Query(ctx context.Context, propertyID string, filter models.EquipmentFilter) ([]*models.Equipment, error)
	GetByID(ctx context.Context, id string) (*models.Equipment, error)
	Upsert(ctx context.Context, eq *models.Equipment) error
}

// MaintenanceRecordStore keeps finalized maintenance history
type MaintenanceRecordStore interface {
	Upsert(ctx context.Context, record *models.MaintenanceRecord) error
	ReplaceForProperty(ctx context.Context, propertyID string, records []*models.MaintenanceRecord) error
	ListByEquipment(ctx context.Context, equipmentID string) ([]*models.MaintenanceRecord, error)
}

// PullStateStore tracks pull progress per property
type PullStateStore interface {
	Get(ctx context.Context, propertyID string) (*models.PullState, error)
	MarkPulled(ctx context.Context, propertyID string, at time.Time) error
}
