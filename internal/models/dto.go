package models

import "time"

// MeasurementRequest is the request body for entering a reading
type MeasurementRequest struct {
	ItemID string           `json:"itemId"`
	Field  MeasurementField `json:"field"`
	Value  *float64         `json:"value"`
}

// StatusToggleRequest is the request body for marking an item OK or flagged
type StatusToggleRequest struct {
	ItemID string `json:"itemId"`
	OK     bool   `json:"ok"`
}

// ObservationRequest is the request body for a flagged-item note.
// A photo, when attached, is uploaded separately and referenced by URI.
type ObservationRequest struct {
	ItemID   string `json:"itemId"`
	Note     string `json:"note"`
	PhotoURI string `json:"photoUri,omitempty"`
}

// ProtocolAnswerRequest is the request body for a protocol question
type ProtocolAnswerRequest struct {
	Key    string `json:"key"`
	Answer bool   `json:"answer"`
}

// InstrumentsRequest replaces the selected instruments
type InstrumentsRequest struct {
	Instruments []Instrument `json:"instruments"`
}

// SessionResponse wraps a session with the state the UI needs to render it
type SessionResponse struct {
	Session    *MaintenanceSession `json:"session"`
	CanAdvance bool                `json:"canAdvance"`
	Issues     []ValidationIssue   `json:"issues"`
}

// SessionSummary is a row in the list of resumable sessions
type SessionSummary struct {
	SessionKey  string    `json:"sessionKey"`
	EquipmentID string    `json:"equipmentId"`
	CurrentStep Step      `json:"currentStep"`
	LastUpdated time.Time `json:"lastUpdated"`
	IsUploaded  bool      `json:"isUploaded"`
}

// PhotoUploadResult is returned after a photo is captured into a session
type PhotoUploadResult struct {
	Photo   PhotoItem `json:"photo"`
	Section string    `json:"section"`
}

// SyncStatusResponse is the passive badge state for the UI
type SyncStatusResponse struct {
	Pending    int        `json:"pending"`
	Retrying   int        `json:"retrying"`
	Failed     int        `json:"failed"`
	Syncing    bool       `json:"syncing"`
	Pulling    bool       `json:"pulling"`
	LastPushAt *time.Time `json:"lastPushAt,omitempty"`
	LastPullAt *time.Time `json:"lastPullAt,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// SyncQueueListResponse lists queue entries
type SyncQueueListResponse struct {
	Entries    []*SyncQueueEntry `json:"entries"`
	TotalCount int               `json:"totalCount"`
}

// EquipmentListResponse lists mirrored equipment
type EquipmentListResponse struct {
	Equipment  []*Equipment `json:"equipment"`
	TotalCount int          `json:"totalCount"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error  string            `json:"error"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// SessionToSummary converts a session to its list row
func SessionToSummary(s *MaintenanceSession) SessionSummary {
	return SessionSummary{
		SessionKey:  s.SessionKey,
		EquipmentID: s.EquipmentID,
		CurrentStep: s.CurrentStep,
		LastUpdated: s.LastUpdated,
		IsUploaded:  s.IsUploaded,
	}
}
