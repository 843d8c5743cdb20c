package services

import (
	"fmt"

	"github.com/fieldsync/inspector/internal/models"
)

// PhotoCaptureManager maintains per-section photo collections within the
// count limits of the equipment subtype
type PhotoCaptureManager struct {
	rules *PhotoRules
}

// NewPhotoCaptureManager creates a manager over the given rules
func NewPhotoCaptureManager(rules *PhotoRules) *PhotoCaptureManager {
	return &PhotoCaptureManager{rules: rules}
}

// Rules returns the rules the manager enforces
func (m *PhotoCaptureManager) Rules() *PhotoRules {
	return m.rules
}

// AddPhoto appends photo to section as pending. Re-adding a URI already in
// the session is a no-op and reports added=false.
func (m *PhotoCaptureManager) AddPhoto(s *models.MaintenanceSession, subtype string, section models.PhotoSection, photo models.PhotoItem) (added bool, err error) {
	if photo.ID == "" {
		return false, models.ErrEmptyPhotoURI
	}
	if _, _, exists := s.FindPhoto(photo.ID); exists {
		return false, nil
	}

	limits, ok := m.rules.Limits(subtype, section)
	if !ok {
		return false, fmt.Errorf("%w: %s is not used for subtype %q", models.ErrInvalidPhotoSection, section, subtype)
	}
	if limits.Max > 0 && s.CountPhotos(section) >= limits.Max {
		verr := models.NewValidationError(models.IssuePhotoLimitReached, section.String(),
			fmt.Sprintf("%s allows at most %d photo(s)", section, limits.Max))
		verr.Step = stepForPhase(section.Phase)
		return false, verr
	}

	photo.Status = models.PhotoPending
	s.AppendPhoto(section, photo)
	return true, nil
}

// RemovePhoto detaches a photo from a section. Used for discard and for the
// remove-then-recapture replace flow.
func (m *PhotoCaptureManager) RemovePhoto(s *models.MaintenanceSession, section models.PhotoSection, id string) bool {
	return s.DetachPhoto(section, id)
}

func stepForPhase(phase models.PhotoPhase) models.Step {
	if phase == models.PhasePost {
		return models.StepPostPhotos
	}
	return models.StepPrePhotos
}
