package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType is the kind of outbound work a queue entry carries
type EntityType string

const (
	EntityMaintenanceResponse EntityType = "maintenance_response"
	EntityPhoto               EntityType = "photo"
)

// SyncStatus is the lifecycle state of a queue entry
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncSyncing    SyncStatus = "syncing"
	SyncDone       SyncStatus = "done"
	SyncError      SyncStatus = "error"
	SyncFatalError SyncStatus = "fatal_error"
)

// IsValid returns true if the status is a recognized value
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncPending, SyncSyncing, SyncDone, SyncError, SyncFatalError:
		return true
	}
	return false
}

// CanTransitionTo checks whether the engine may move an entry to target.
//
// Valid transitions:
// - pending -> syncing
// - syncing -> done | error | fatal_error
// - syncing -> pending (recovery of work interrupted by a crash)
// - error -> syncing (auto-retry) | fatal_error (attempts exhausted)
// - fatal_error -> pending (explicit user retry only)
func (s SyncStatus) CanTransitionTo(target SyncStatus) bool {
	switch s {
	case SyncPending:
		return target == SyncSyncing
	case SyncSyncing:
		return target == SyncDone || target == SyncError || target == SyncFatalError || target == SyncPending
	case SyncError:
		return target == SyncSyncing || target == SyncFatalError
	case SyncFatalError:
		return target == SyncPending
	}
	return false
}

// FailureKind classifies why an upload failed
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// SyncQueueEntry is one durable, independently retried unit of outbound work.
// For photo entries RemoteID holds the public URL once the upload is done.
type SyncQueueEntry struct {
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entityType"`
	LocalID       string          `json:"localId"`
	SessionKey    string          `json:"sessionKey"`
	RemoteID      string          `json:"remoteId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	Status        SyncStatus      `json:"status"`
	LastError     string          `json:"lastError,omitempty"`
	FailureKind   FailureKind     `json:"failureKind,omitempty"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewSyncQueueEntry creates a pending entry with a JSON encoded payload
func NewSyncQueueEntry(entityType EntityType, sessionKey, localID string, payload interface{}) (*SyncQueueEntry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &SyncQueueEntry{
		ID:         uuid.New().String(),
		EntityType: entityType,
		LocalID:    localID,
		SessionKey: sessionKey,
		Payload:    data,
		Status:     SyncPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsEligible reports whether the engine should pick the entry up at now
func (e *SyncQueueEntry) IsEligible(now time.Time) bool {
	switch e.Status {
	case SyncPending:
		return true
	case SyncError:
		return e.NextAttemptAt == nil || !e.NextAttemptAt.After(now)
	}
	return false
}

// DecodePayload unmarshals the entry payload into v
func (e *SyncQueueEntry) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// PhotoUploadPayload is the payload of a photo queue entry
type PhotoUploadPayload struct {
	PhotoID  string        `json:"photoId"`
	URI      string        `json:"uri"`
	Phase    PhotoPhase    `json:"phase"`
	Category PhotoCategory `json:"category"`
	Folder   string        `json:"folder"`
	Checksum string        `json:"checksum,omitempty"`
}

// MaintenanceResponsePayload is the structured inspection result sent to the
// remote store. LocalRef is stable across retries so the server can
// update-if-exists instead of inserting a duplicate.
type MaintenanceResponsePayload struct {
	LocalRef            string                     `json:"localRef"`
	SessionKey          string                     `json:"sessionKey"`
	EquipmentID         string                     `json:"equipmentId"`
	MaintenanceID       string                     `json:"maintenanceId,omitempty"`
	PropertyID          string                     `json:"propertyId,omitempty"`
	StartTime           time.Time                  `json:"startTime"`
	FinishedAt          time.Time                  `json:"finishedAt"`
	Checklist           map[string]bool            `json:"checklist"`
	Measurements        map[string]Measurement     `json:"measurements"`
	ItemObservations    map[string]ItemObservation `json:"itemObservations"`
	Protocol            map[string]bool            `json:"protocol"`
	SelectedInstruments []Instrument               `json:"selectedInstruments"`
	PrePhotos           []PhotoItem                `json:"prePhotos"`
	PostPhotos          []PhotoItem                `json:"postPhotos"`
}

// PhotoIDs returns every photo the payload references
func (p *MaintenanceResponsePayload) PhotoIDs() []string {
	ids := make([]string, 0, len(p.PrePhotos)+len(p.PostPhotos))
	for _, photo := range p.PrePhotos {
		ids = append(ids, photo.ID)
	}
	for _, photo := range p.PostPhotos {
		ids = append(ids, photo.ID)
	}
	return ids
}

// NewMaintenanceResponsePayload snapshots a session at finalize time
func NewMaintenanceResponsePayload(s *MaintenanceSession) *MaintenanceResponsePayload {
	return &MaintenanceResponsePayload{
		SessionKey:          s.SessionKey,
		EquipmentID:         s.EquipmentID,
		MaintenanceID:       s.MaintenanceID,
		PropertyID:          s.PropertyID,
		StartTime:           s.StartTime,
		FinishedAt:          time.Now().UTC(),
		Checklist:           s.Checklist,
		Measurements:        s.Measurements,
		ItemObservations:    s.ItemObservations,
		Protocol:            s.Protocol,
		SelectedInstruments: s.SelectedInstruments,
		PrePhotos:           append([]PhotoItem(nil), s.PrePhotos...),
		PostPhotos:          append([]PhotoItem(nil), s.PostPhotos...),
	}
}

// RemotePhoto is where an uploaded photo landed in the remote store
type RemotePhoto struct {
	RemotePath string `json:"remotePath"`
	URL        string `json:"url"`
}
