package services

import (
	"fmt"
	"math"

	"github.com/fieldsync/inspector/internal/models"
)

// ChecklistValidator decides item status from measurement readings and gates
// step advancement. It holds no state beyond its tolerance settings.
type ChecklistValidator struct {
	voltageTolerancePct  float64
	amperageTolerancePct float64
}

// NewChecklistValidator creates a validator with the given tolerance bands
func NewChecklistValidator(voltageTolerancePct, amperageTolerancePct float64) *ChecklistValidator {
	return &ChecklistValidator{
		voltageTolerancePct:  voltageTolerancePct,
		amperageTolerancePct: amperageTolerancePct,
	}
}

// EvaluateMeasurement reports whether reading lies within ±tolerancePct of nominal.
// A non-positive nominal cannot be evaluated and counts as in range; a
// negative reading never does.
func EvaluateMeasurement(nominal, reading, tolerancePct float64) bool {
	if reading < 0 || math.IsNaN(reading) || math.IsInf(reading, 0) {
		return false
	}
	if nominal <= 0 {
		return true
	}
	return math.Abs(reading-nominal) <= nominal*tolerancePct/100
}

// evaluateAmperage accepts any load up to the rated current plus tolerance
func evaluateAmperage(rated, reading, tolerancePct float64) bool {
	if reading < 0 || math.IsNaN(reading) || math.IsInf(reading, 0) {
		return false
	}
	if rated <= 0 {
		return true
	}
	return reading <= rated*(1+tolerancePct/100)
}

// OnMeasurementEntered records a reading and recomputes its range flag.
// An out-of-range reading forces the item to flagged; an in-range one never
// flips it back to OK. A nil value clears the reading.
func (v *ChecklistValidator) OnMeasurementEntered(s *models.MaintenanceSession, item *models.ChecklistItem, field models.MeasurementField, value *float64) error {
	m := s.Measurements[item.ID]

	switch field {
	case models.FieldVoltage:
		m.Voltage = value
		m.IsVoltageInRange = nil
		if value != nil {
			inRange := EvaluateMeasurement(item.NominalVoltage, *value, v.voltageTolerancePct)
			m.IsVoltageInRange = &inRange
		}
	case models.FieldAmperage:
		m.Amperage = value
		m.IsAmperageInRange = nil
		if value != nil {
			inRange := evaluateAmperage(item.RatedAmperage, *value, v.amperageTolerancePct)
			m.IsAmperageInRange = &inRange
		}
	default:
		return fmt.Errorf("unknown measurement field %q", field)
	}

	s.Measurements[item.ID] = m
	if m.HasOutOfRange() {
		s.Checklist[item.ID] = false
	}
	return nil
}

// OnStatusToggle sets an item OK or flagged. Marking OK is rejected while a
// reading for the item is out of range.
func (v *ChecklistValidator) OnStatusToggle(s *models.MaintenanceSession, item *models.ChecklistItem, desired bool) error {
	if desired && s.Measurements[item.ID].HasOutOfRange() {
		return models.NewValidationError(models.IssueMeasurementOutOfRange, item.ID,
			"cannot mark OK while measurement out of range - add observation and photo")
	}
	s.Checklist[item.ID] = desired
	return nil
}

// CanAdvance reports whether the current step has no blocking issues
func (v *ChecklistValidator) CanAdvance(s *models.MaintenanceSession, checklist *models.Checklist, rules *PhotoRules) bool {
	return !v.ValidateStep(s, checklist, rules, s.CurrentStep).HasIssues()
}

// ValidateStep reports every issue that blocks leaving step. It returns nil
// when the step is complete.
func (v *ChecklistValidator) ValidateStep(s *models.MaintenanceSession, checklist *models.Checklist, rules *PhotoRules, step models.Step) *models.ValidationError {
	verr := &models.ValidationError{Step: step}

	switch step {
	case models.StepPrePhotos:
		v.checkPhotoMinimums(verr, s, checklist.Subtype, rules, models.PhasePre)
	case models.StepChecklist:
		for i := range checklist.Items {
			v.checkItem(verr, s, &checklist.Items[i])
		}
	case models.StepProtocol:
		for _, q := range checklist.Protocol {
			if _, answered := s.Protocol[q.Key]; !answered {
				verr.Add(models.IssueMissingProtocolAnswer, q.Key, fmt.Sprintf("answer %q", q.Label))
			}
		}
	case models.StepPostPhotos:
		v.checkPhotoMinimums(verr, s, checklist.Subtype, rules, models.PhasePost)
	case models.StepSummary:
	default:
		verr.Add(models.IssueStepNotComplete, "", fmt.Sprintf("unknown step %q", step))
	}

	if !verr.HasIssues() {
		return nil
	}
	return verr
}

// ValidateAll checks every step before the summary
func (v *ChecklistValidator) ValidateAll(s *models.MaintenanceSession, checklist *models.Checklist, rules *PhotoRules) *models.ValidationError {
	all := &models.ValidationError{Step: models.StepSummary}
	for _, step := range models.Steps {
		if verr := v.ValidateStep(s, checklist, rules, step); verr != nil {
			all.Issues = append(all.Issues, verr.Issues...)
		}
	}
	if !all.HasIssues() {
		return nil
	}
	return all
}

// checkItem applies the completeness rule to an item and its sub-items
func (v *ChecklistValidator) checkItem(verr *models.ValidationError, s *models.MaintenanceSession, item *models.ChecklistItem) {
	ok, hasStatus := s.Checklist[item.ID]
	if !hasStatus {
		verr.Add(models.IssueMissingStatus, item.ID, fmt.Sprintf("%s has no status", item.Label))
	}

	m := s.Measurements[item.ID]
	if item.RequiresMeasurement && !m.IsComplete() {
		verr.Add(models.IssueMissingMeasurement, item.ID, fmt.Sprintf("%s needs voltage and amperage", item.Label))
	}
	if hasStatus && ok && m.HasOutOfRange() {
		verr.Add(models.IssueMeasurementOutOfRange, item.ID, fmt.Sprintf("%s is marked OK with a reading out of range", item.Label))
	}

	if hasStatus && !ok {
		obs := s.ItemObservations[item.ID]
		if obs.Note == "" {
			verr.Add(models.IssueMissingNote, item.ID, fmt.Sprintf("%s is flagged and needs a note", item.Label))
		}
		if obs.PhotoURI == "" {
			verr.Add(models.IssueMissingPhoto, item.ID, fmt.Sprintf("%s is flagged and needs a photo", item.Label))
		}
	}

	for i := range item.SubItems {
		v.checkItem(verr, s, &item.SubItems[i])
	}
}

func (v *ChecklistValidator) checkPhotoMinimums(verr *models.ValidationError, s *models.MaintenanceSession, subtype string, rules *PhotoRules, phase models.PhotoPhase) {
	for _, section := range rules.Sections(subtype, phase) {
		limits, _ := rules.Limits(subtype, section)
		if n := s.CountPhotos(section); n < limits.Min {
			verr.Add(models.IssuePhotoMinimum, section.String(),
				fmt.Sprintf("%s needs at least %d photo(s), has %d", section, limits.Min, n))
		}
	}
}
