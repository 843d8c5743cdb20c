package models

import (
	"fmt"
	"strings"
)

// InspectionError is a sentinel error raised by the inspection domain
type InspectionError struct {
	Message string
}

func (e InspectionError) Error() string {
	return e.Message
}

var (
	ErrEmptyEquipmentID    = InspectionError{"equipment id cannot be empty"}
	ErrInvalidSessionKey   = InspectionError{"invalid session key"}
	ErrSessionNotFound     = InspectionError{"session not found"}
	ErrCorruptSession      = InspectionError{"stored session is unreadable"}
	ErrSessionUploaded     = InspectionError{"session was already uploaded"}
	ErrSessionFinalized    = InspectionError{"session is finalized and waiting for upload"}
	ErrEquipmentNotFound   = InspectionError{"equipment not found"}
	ErrUnknownItem         = InspectionError{"checklist item not found"}
	ErrInvalidStep         = InspectionError{"invalid step"}
	ErrEmptyPhotoURI       = InspectionError{"photo uri cannot be empty"}
	ErrInvalidPhotoSection = InspectionError{"invalid photo section"}
	ErrPhotoNotFound       = InspectionError{"photo not found"}
	ErrPhotoFileMissing    = InspectionError{"local photo file is missing"}
	ErrPhotoCorrupt        = InspectionError{"local photo file does not match its checksum"}
	ErrQueueEntryNotFound  = InspectionError{"sync queue entry not found"}
	ErrInvalidTransition   = InspectionError{"invalid sync status transition"}
	ErrEntryClaimed        = InspectionError{"sync queue entry was changed by another worker"}
	ErrInvalidExtension    = InspectionError{"file extension not allowed"}
	ErrFileTooLarge        = InspectionError{"file size exceeds maximum allowed"}
	ErrPathTraversal       = InspectionError{"invalid path - path traversal detected"}
	ErrSweepRunning        = InspectionError{"capture sweep already running"}
	ErrEngineStopped       = InspectionError{"sync engine is shutting down"}
)

// Validation issue codes
const (
	IssueMissingStatus         = "missing_status"
	IssueMissingMeasurement    = "missing_measurement"
	IssueMissingNote           = "missing_note"
	IssueMissingPhoto          = "missing_photo"
	IssueMeasurementOutOfRange = "measurement_out_of_range"
	IssuePhotoLimitReached     = "photo_limit_reached"
	IssuePhotoMinimum          = "photo_minimum"
	IssueMissingProtocolAnswer = "missing_protocol_answer"
	IssueDuplicatePhoto        = "duplicate_photo"
	IssueStepNotComplete       = "step_not_complete"
)

// ValidationIssue is one reason the technician cannot proceed
type ValidationIssue struct {
	Code    string `json:"code"`
	ItemID  string `json:"itemId,omitempty"`
	Message string `json:"message"`
}

// ValidationError is a blocking condition surfaced synchronously to the caller.
// It is never persisted.
type ValidationError struct {
	Step   Step              `json:"step,omitempty"`
	Issues []ValidationIssue `json:"issues"`
}

// NewValidationError creates a ValidationError with a single issue
func NewValidationError(code, itemID, message string) *ValidationError {
	return &ValidationError{Issues: []ValidationIssue{{Code: code, ItemID: itemID, Message: message}}}
}

// Add appends an issue
func (e *ValidationError) Add(code, itemID, message string) {
	e.Issues = append(e.Issues, ValidationIssue{Code: code, ItemID: itemID, Message: message})
}

// HasIssues reports whether anything blocks the caller
func (e *ValidationError) HasIssues() bool {
	return e != nil && len(e.Issues) > 0
}

// HasCode reports whether an issue with the given code is present
func (e *ValidationError) HasCode(code string) bool {
	if e == nil {
		return false
	}
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.ItemID != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", issue.ItemID, issue.Message))
		} else {
			msgs = append(msgs, issue.Message)
		}
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
