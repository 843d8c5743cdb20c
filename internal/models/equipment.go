package models

import "time"

// EquipmentType is the family of equipment being inspected
type EquipmentType string

const (
	EquipmentElectricalPanel EquipmentType = "electrical_panel"
	EquipmentEmergencyLight  EquipmentType = "emergency_light"
	EquipmentGroundingWell   EquipmentType = "grounding_well"
)

// Known panel subtypes
const (
	SubtypeDistribution  = "distribucion"
	SubtypeSelfSupported = "autosoportado"
)

// Circuit is one breaker (ITG or ITM) inside an electrical panel
type Circuit struct {
	ID              string  `json:"id"`
	Label           string  `json:"label"`
	NominalVoltage  float64 `json:"nominalVoltage"`
	RatedAmperage   float64 `json:"ratedAmperage"`
	HasDifferential bool    `json:"hasDifferential"`
}

// Equipment is the local mirror of a remote equipment record.
// The remote store is authoritative for every field.
type Equipment struct {
	ID         string        `json:"id"`
	PropertyID string        `json:"propertyId"`
	Name       string        `json:"name"`
	Type       EquipmentType `json:"type"`
	Subtype    string        `json:"subtype,omitempty"`
	Location   string        `json:"location,omitempty"`
	Circuits   []Circuit     `json:"circuits,omitempty"`
	Deleted    bool          `json:"deleted,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// EquipmentFilter narrows a mirror query
type EquipmentFilter struct {
	Type    EquipmentType `json:"type,omitempty"`
	Subtype string        `json:"subtype,omitempty"`
	Search  string        `json:"search,omitempty"`
}

// MaintenanceRecord is a finalized maintenance kept for offline history
type MaintenanceRecord struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"propertyId"`
	EquipmentID   string    `json:"equipmentId"`
	MaintenanceID string    `json:"maintenanceId,omitempty"`
	LocalRef      string    `json:"localRef,omitempty"`
	Status        string    `json:"status"`
	CompletedAt   time.Time `json:"completedAt"`
	Summary       string    `json:"summary,omitempty"`
}

// Maintenance record statuses
const (
	RecordCompleted = "completed"
	RecordFlagged   = "flagged"
)
