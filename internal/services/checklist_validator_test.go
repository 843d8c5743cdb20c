package services

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/models"
)

func panelChecklist() *models.Checklist {
	return models.BuildChecklist(&models.Equipment{
		ID:      "eq-1",
		Type:    models.EquipmentElectricalPanel,
		Subtype: models.SubtypeDistribution,
		Circuits: []models.Circuit{
			{ID: "itg-1", Label: "ITG", NominalVoltage: 220, RatedAmperage: 32},
		},
	})
}

// differentialChecklist has one ITG circuit carrying a differential breaker
func differentialChecklist() *models.Checklist {
	return models.BuildChecklist(&models.Equipment{
		ID:      "eq-1",
		Type:    models.EquipmentElectricalPanel,
		Subtype: models.SubtypeDistribution,
		Circuits: []models.Circuit{
			{ID: "itg-1", Label: "ITG", NominalVoltage: 220, RatedAmperage: 32, HasDifferential: true},
		},
	})
}

func newSession(t *testing.T) *models.MaintenanceSession {
	s, err := models.NewMaintenanceSession("eq-1", "")
	require.NoError(t, err)
	return s
}

func TestEvaluateMeasurement(t *testing.T) {
	tests := []struct {
		name     string
		nominal  float64
		reading  float64
		expected bool
	}{
		{"exact", 220, 220, true},
		{"upper edge", 220, 242, true},
		{"lower edge", 220, 198, true},
		{"above band", 220, 243, false},
		{"far below", 220, 150, false},
		{"negative reading", 220, -1, false},
		{"NaN", 220, math.NaN(), false},
		{"no nominal", 0, 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EvaluateMeasurement(tt.nominal, tt.reading, 10))
		})
	}
}

func TestEvaluateAmperage(t *testing.T) {
	assert.True(t, evaluateAmperage(32, 0, 10))
	assert.True(t, evaluateAmperage(32, 35.2, 10))
	assert.False(t, evaluateAmperage(32, 36, 10))
	assert.False(t, evaluateAmperage(32, -2, 10))
}

func TestChecklistValidator_OutOfRangeVoltage(t *testing.T) {
	v := NewChecklistValidator(10, 10)
	checklist := panelChecklist()
	item, ok := checklist.Find("itg-1")
	require.True(t, ok)

	s := newSession(t)
	s.CurrentStep = models.StepChecklist

	t.Run("150V on a 220V circuit forces flagged", func(t *testing.T) {
		require.NoError(t, v.OnMeasurementEntered(s, item, models.FieldVoltage, floatPtr(150)))

		m := s.Measurements["itg-1"]
		require.NotNil(t, m.IsVoltageInRange)
		assert.False(t, *m.IsVoltageInRange)
		assert.False(t, s.Checklist["itg-1"])
	})

	t.Run("marking OK is rejected", func(t *testing.T) {
		err := v.OnStatusToggle(s, item, true)

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasCode(models.IssueMeasurementOutOfRange))
		assert.False(t, s.Checklist["itg-1"])
	})

	t.Run("step blocked until note and photo are given", func(t *testing.T) {
		require.NoError(t, v.OnMeasurementEntered(s, item, models.FieldAmperage, floatPtr(10)))

		verr := v.ValidateStep(s, checklist, nil, models.StepChecklist)
		require.NotNil(t, verr)
		assert.True(t, verr.HasCode(models.IssueMissingNote))
		assert.True(t, verr.HasCode(models.IssueMissingPhoto))

		s.ItemObservations["itg-1"] = models.ItemObservation{Note: "low voltage", PhotoURI: "obs.jpg"}
		assert.Nil(t, v.ValidateStep(s, checklist, nil, models.StepChecklist))
		assert.True(t, v.CanAdvance(s, checklist, nil))
	})

	t.Run("in-range reading does not flip back to OK", func(t *testing.T) {
		require.NoError(t, v.OnMeasurementEntered(s, item, models.FieldVoltage, floatPtr(220)))

		assert.True(t, *s.Measurements["itg-1"].IsVoltageInRange)
		assert.False(t, s.Checklist["itg-1"])
		assert.NoError(t, v.OnStatusToggle(s, item, true))
		assert.True(t, s.Checklist["itg-1"])
	})

	t.Run("clearing a reading clears its flag", func(t *testing.T) {
		require.NoError(t, v.OnMeasurementEntered(s, item, models.FieldVoltage, nil))
		assert.Nil(t, s.Measurements["itg-1"].IsVoltageInRange)
	})
}

func TestChecklistValidator_ValidateStep(t *testing.T) {
	v := NewChecklistValidator(10, 10)
	rules, err := LoadPhotoRules("")
	require.NoError(t, err)
	checklist := panelChecklist()

	t.Run("missing status and measurement", func(t *testing.T) {
		verr := v.ValidateStep(newSession(t), checklist, rules, models.StepChecklist)
		require.NotNil(t, verr)
		assert.Equal(t, models.StepChecklist, verr.Step)
		assert.True(t, verr.HasCode(models.IssueMissingStatus))
		assert.True(t, verr.HasCode(models.IssueMissingMeasurement))
	})

	t.Run("pre photos require the minimum", func(t *testing.T) {
		s := newSession(t)
		verr := v.ValidateStep(s, checklist, rules, models.StepPrePhotos)
		require.NotNil(t, verr)
		assert.True(t, verr.HasCode(models.IssuePhotoMinimum))

		s.AppendPhoto(models.SectionPreVisual, models.PhotoItem{ID: "a.jpg", URI: "a.jpg"})
		assert.Nil(t, v.ValidateStep(s, checklist, rules, models.StepPrePhotos))
	})

	t.Run("protocol needs every answer", func(t *testing.T) {
		s := newSession(t)
		verr := v.ValidateStep(s, checklist, rules, models.StepProtocol)
		require.NotNil(t, verr)
		assert.Len(t, verr.Issues, len(checklist.Protocol))

		for _, q := range checklist.Protocol {
			s.Protocol[q.Key] = false
		}
		assert.Nil(t, v.ValidateStep(s, checklist, rules, models.StepProtocol))
	})

	t.Run("summary never blocks", func(t *testing.T) {
		assert.Nil(t, v.ValidateStep(newSession(t), checklist, rules, models.StepSummary))
	})

	t.Run("validate all collects every step", func(t *testing.T) {
		verr := v.ValidateAll(newSession(t), checklist, rules)
		require.NotNil(t, verr)
		assert.True(t, verr.HasCode(models.IssuePhotoMinimum))
		assert.True(t, verr.HasCode(models.IssueMissingStatus))
		assert.True(t, verr.HasCode(models.IssueMissingProtocolAnswer))
	})
}

func TestChecklistValidator_DifferentialSubItem(t *testing.T) {
	v := NewChecklistValidator(10, 10)
	rules, err := LoadPhotoRules("")
	require.NoError(t, err)
	checklist := differentialChecklist()
	diff := "itg-1" + models.DifferentialSuffix

	// circuit itself is complete and OK in every case
	base := func(t *testing.T) *models.MaintenanceSession {
		s := newSession(t)
		s.CurrentStep = models.StepChecklist
		s.Checklist["itg-1"] = true
		s.Measurements["itg-1"] = models.Measurement{Voltage: floatPtr(220), Amperage: floatPtr(10)}
		return s
	}

	tests := []struct {
		name    string
		setup   func(s *models.MaintenanceSession)
		blocked string
	}{
		{
			name:    "sub-item status missing",
			setup:   func(s *models.MaintenanceSession) {},
			blocked: models.IssueMissingStatus,
		},
		{
			name: "sub-item flagged without note",
			setup: func(s *models.MaintenanceSession) {
				s.Checklist[diff] = false
				s.ItemObservations[diff] = models.ItemObservation{PhotoURI: "d.jpg"}
			},
			blocked: models.IssueMissingNote,
		},
		{
			name: "sub-item flagged without photo",
			setup: func(s *models.MaintenanceSession) {
				s.Checklist[diff] = false
				s.ItemObservations[diff] = models.ItemObservation{Note: "trips late"}
			},
			blocked: models.IssueMissingPhoto,
		},
		{
			name: "sub-item OK",
			setup: func(s *models.MaintenanceSession) {
				s.Checklist[diff] = true
			},
		},
		{
			name: "sub-item flagged with note and photo",
			setup: func(s *models.MaintenanceSession) {
				s.Checklist[diff] = false
				s.ItemObservations[diff] = models.ItemObservation{Note: "trips late", PhotoURI: "d.jpg"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base(t)
			tt.setup(s)

			verr := v.ValidateStep(s, checklist, rules, models.StepChecklist)
			if tt.blocked == "" {
				assert.Nil(t, verr)
				assert.True(t, v.CanAdvance(s, checklist, rules))
				return
			}
			require.NotNil(t, verr)
			assert.True(t, verr.HasCode(tt.blocked))
			assert.False(t, v.CanAdvance(s, checklist, rules))
			for _, issue := range verr.Issues {
				assert.Equal(t, diff, issue.ItemID)
			}
		})
	}
}

func TestChecklistValidator_CanAdvanceEveryPermutation(t *testing.T) {
	v := NewChecklistValidator(10, 10)
	rules, err := LoadPhotoRules("")
	require.NoError(t, err)
	checklist := panelChecklist()

	statuses := []string{"missing", "ok", "flagged"}
	for _, status := range statuses {
		for mask := 0; mask < 16; mask++ {
			voltage, amperage := mask&1 != 0, mask&2 != 0
			note, photo := mask&4 != 0, mask&8 != 0

			name := fmt.Sprintf("status=%s voltage=%t amperage=%t note=%t photo=%t", status, voltage, amperage, note, photo)
			t.Run(name, func(t *testing.T) {
				s := newSession(t)
				s.CurrentStep = models.StepChecklist
				switch status {
				case "ok":
					s.Checklist["itg-1"] = true
				case "flagged":
					s.Checklist["itg-1"] = false
				}
				var m models.Measurement
				if voltage {
					m.Voltage = floatPtr(220)
				}
				if amperage {
					m.Amperage = floatPtr(10)
				}
				s.Measurements["itg-1"] = m
				var obs models.ItemObservation
				if note {
					obs.Note = "loose terminal"
				}
				if photo {
					obs.PhotoURI = "obs.jpg"
				}
				s.ItemObservations["itg-1"] = obs

				expected := status != "missing" && voltage && amperage &&
					(status == "ok" || (note && photo))
				assert.Equal(t, expected, v.CanAdvance(s, checklist, rules))
			})
		}
	}
}
