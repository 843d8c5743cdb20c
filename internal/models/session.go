package models

import (
	"strings"
	"time"
)

// AdhocMaintenanceID marks a session that was not started from a schedule
const AdhocMaintenanceID = "adhoc"

// Step is one stage of the inspection flow
type Step string

const (
	StepPrePhotos  Step = "pre_photos"
	StepChecklist  Step = "checklist"
	StepProtocol   Step = "protocol"
	StepPostPhotos Step = "post_photos"
	StepSummary    Step = "summary"
)

// Steps lists the inspection steps in the order a technician walks through them
var Steps = []Step{StepPrePhotos, StepChecklist, StepProtocol, StepPostPhotos, StepSummary}

// IsValid returns true if the step is a recognized value
func (s Step) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of the step in Steps, or -1
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the step after s. The last step returns itself.
func (s Step) Next() Step {
	i := s.Index()
	if i < 0 || i == len(Steps)-1 {
		return s
	}
	return Steps[i+1]
}

// Previous returns the step before s. The first step returns itself.
func (s Step) Previous() Step {
	i := s.Index()
	if i <= 0 {
		return s
	}
	return Steps[i-1]
}

// MeasurementField names one of the readings recorded for a checklist item
type MeasurementField string

const (
	FieldVoltage  MeasurementField = "voltage"
	FieldAmperage MeasurementField = "amperage"
)

// Measurement holds the readings for one checklist item.
// Fields stay nil until the technician enters them.
type Measurement struct {
	Voltage           *float64 `json:"voltage,omitempty"`
	Amperage          *float64 `json:"amperage,omitempty"`
	IsVoltageInRange  *bool    `json:"isVoltageInRange,omitempty"`
	IsAmperageInRange *bool    `json:"isAmperageInRange,omitempty"`
}

// HasOutOfRange reports whether any evaluated reading is flagged out of range
func (m Measurement) HasOutOfRange() bool {
	return (m.IsVoltageInRange != nil && !*m.IsVoltageInRange) ||
		(m.IsAmperageInRange != nil && !*m.IsAmperageInRange)
}

// IsComplete reports whether both readings have been entered
func (m Measurement) IsComplete() bool {
	return m.Voltage != nil && m.Amperage != nil
}

// ItemObservation is the note (and optional photo) attached to a flagged item
type ItemObservation struct {
	Note     string `json:"note"`
	PhotoURI string `json:"photoUri,omitempty"`
}

// Instrument is a measurement instrument used during the inspection
type Instrument struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Serial       string     `json:"serial,omitempty"`
	CalibratedAt *time.Time `json:"calibratedAt,omitempty"`
}

// MaintenanceSession is the persisted, resumable state of one in-progress inspection
type MaintenanceSession struct {
	SessionKey    string    `json:"sessionKey"`
	MaintenanceID string    `json:"maintenanceId,omitempty"`
	EquipmentID   string    `json:"equipmentId"`
	PropertyID    string    `json:"propertyId,omitempty"`
	StartTime     time.Time `json:"startTime"`
	LastUpdated   time.Time `json:"lastUpdated"`

	PrePhotos  []PhotoItem `json:"prePhotos"`
	PostPhotos []PhotoItem `json:"postPhotos"`

	Checklist        map[string]bool            `json:"checklist"`
	Measurements     map[string]Measurement     `json:"measurements"`
	ItemObservations map[string]ItemObservation `json:"itemObservations"`
	Protocol         map[string]bool            `json:"protocol"`

	SelectedInstruments []Instrument `json:"selectedInstruments"`
	CurrentStep         Step         `json:"currentStep"`
	FinalizedAt         *time.Time   `json:"finalizedAt,omitempty"`
	IsUploaded          bool         `json:"isUploaded"`
}

// SessionKey builds the persistence key for an equipment + maintenance pair.
// An empty maintenance ID becomes the adhoc sentinel.
func SessionKey(equipmentID, maintenanceID string) string {
	if strings.TrimSpace(maintenanceID) == "" {
		maintenanceID = AdhocMaintenanceID
	}
	return equipmentID + ":" + maintenanceID
}

// ParseSessionKey splits a session key into equipment and maintenance IDs
func ParseSessionKey(key string) (equipmentID, maintenanceID string, err error) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", ErrInvalidSessionKey
	}
	return key[:idx], key[idx+1:], nil
}

// NewMaintenanceSession creates an empty session positioned on the first step
func NewMaintenanceSession(equipmentID, maintenanceID string) (*MaintenanceSession, error) {
	if strings.TrimSpace(equipmentID) == "" {
		return nil, ErrEmptyEquipmentID
	}

	now := time.Now().UTC()
	s := &MaintenanceSession{
		SessionKey:  SessionKey(equipmentID, maintenanceID),
		EquipmentID: equipmentID,
		StartTime:   now,
		LastUpdated: now,
		CurrentStep: StepPrePhotos,
	}
	if maintenanceID != "" && maintenanceID != AdhocMaintenanceID {
		s.MaintenanceID = maintenanceID
	}
	s.EnsureMaps()
	return s, nil
}

// EnsureMaps replaces nil collections so decoded sessions behave like fresh ones
func (s *MaintenanceSession) EnsureMaps() {
	if s.PrePhotos == nil {
		s.PrePhotos = []PhotoItem{}
	}
	if s.PostPhotos == nil {
		s.PostPhotos = []PhotoItem{}
	}
	if s.Checklist == nil {
		s.Checklist = map[string]bool{}
	}
	if s.Measurements == nil {
		s.Measurements = map[string]Measurement{}
	}
	if s.ItemObservations == nil {
		s.ItemObservations = map[string]ItemObservation{}
	}
	if s.Protocol == nil {
		s.Protocol = map[string]bool{}
	}
	if s.SelectedInstruments == nil {
		s.SelectedInstruments = []Instrument{}
	}
	if s.CurrentStep == "" {
		s.CurrentStep = StepPrePhotos
	}
}

// Touch bumps LastUpdated. Every mutator calls it before persisting.
func (s *MaintenanceSession) Touch() {
	s.LastUpdated = time.Now().UTC()
}

// IsFinalized reports whether the session was handed to the sync queue
func (s *MaintenanceSession) IsFinalized() bool {
	return s.FinalizedAt != nil
}

// IsAdhoc reports whether the session was started without a schedule
func (s *MaintenanceSession) IsAdhoc() bool {
	return s.MaintenanceID == ""
}

// Photos returns the photo slice for a phase
func (s *MaintenanceSession) Photos(phase PhotoPhase) []PhotoItem {
	if phase == PhasePost {
		return s.PostPhotos
	}
	return s.PrePhotos
}

// setPhotos replaces the photo slice for a phase
func (s *MaintenanceSession) setPhotos(phase PhotoPhase, photos []PhotoItem) {
	if phase == PhasePost {
		s.PostPhotos = photos
		return
	}
	s.PrePhotos = photos
}

// FindPhoto looks a photo up by id in both phases
func (s *MaintenanceSession) FindPhoto(id string) (*PhotoItem, PhotoPhase, bool) {
	for i := range s.PrePhotos {
		if s.PrePhotos[i].ID == id {
			return &s.PrePhotos[i], PhasePre, true
		}
	}
	for i := range s.PostPhotos {
		if s.PostPhotos[i].ID == id {
			return &s.PostPhotos[i], PhasePost, true
		}
	}
	return nil, "", false
}

// AppendPhoto adds a photo to a section. Callers check limits first.
func (s *MaintenanceSession) AppendPhoto(section PhotoSection, photo PhotoItem) {
	photo.Category = section.Category
	s.setPhotos(section.Phase, append(s.Photos(section.Phase), photo))
}

// DetachPhoto removes a photo from a section by id
func (s *MaintenanceSession) DetachPhoto(section PhotoSection, id string) bool {
	photos := s.Photos(section.Phase)
	for i := range photos {
		if photos[i].ID == id && photos[i].Category == section.Category {
			out := make([]PhotoItem, 0, len(photos)-1)
			out = append(out, photos[:i]...)
			out = append(out, photos[i+1:]...)
			s.setPhotos(section.Phase, out)
			return true
		}
	}
	return false
}

// CountPhotos returns how many photos a section holds
func (s *MaintenanceSession) CountPhotos(section PhotoSection) int {
	n := 0
	for _, p := range s.Photos(section.Phase) {
		if p.Category == section.Category {
			n++
		}
	}
	return n
}

// AllPhotos returns pre and post photos in capture order
func (s *MaintenanceSession) AllPhotos() []PhotoItem {
	all := make([]PhotoItem, 0, len(s.PrePhotos)+len(s.PostPhotos))
	all = append(all, s.PrePhotos...)
	return append(all, s.PostPhotos...)
}
