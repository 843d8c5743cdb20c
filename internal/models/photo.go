package models

import (
	"fmt"
	"strings"
	"time"
)

// PhotoStatus tracks the upload state of a captured photo
type PhotoStatus string

const (
	PhotoPending   PhotoStatus = "pending"
	PhotoUploading PhotoStatus = "uploading"
	PhotoFailed    PhotoStatus = "error"
	PhotoDone      PhotoStatus = "done"
)

// PhotoCategory tags what a photo documents
type PhotoCategory string

const (
	CategoryVisual      PhotoCategory = "visual"
	CategoryThermo      PhotoCategory = "thermo"
	CategoryObservation PhotoCategory = "observation"
)

// IsValid returns true if the category is a recognized value
func (c PhotoCategory) IsValid() bool {
	switch c {
	case CategoryVisual, CategoryThermo, CategoryObservation:
		return true
	}
	return false
}

// PhotoPhase is the before/after split of session photos
type PhotoPhase string

const (
	PhasePre  PhotoPhase = "pre"
	PhasePost PhotoPhase = "post"
)

// PhotoSection addresses one photo collection inside a session, e.g. pre.visual
type PhotoSection struct {
	Phase    PhotoPhase
	Category PhotoCategory
}

// String returns the "phase.category" form used in photo rules
func (s PhotoSection) String() string {
	return string(s.Phase) + "." + string(s.Category)
}

// ParsePhotoSection parses "pre.visual" style section names
func ParsePhotoSection(value string) (PhotoSection, error) {
	phase, category, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), ".")
	if !ok {
		return PhotoSection{}, fmt.Errorf("%w: %q", ErrInvalidPhotoSection, value)
	}
	section := PhotoSection{Phase: PhotoPhase(phase), Category: PhotoCategory(category)}
	if (section.Phase != PhasePre && section.Phase != PhasePost) || !section.Category.IsValid() {
		return PhotoSection{}, fmt.Errorf("%w: %q", ErrInvalidPhotoSection, value)
	}
	return section, nil
}

var (
	SectionPreVisual      = PhotoSection{Phase: PhasePre, Category: CategoryVisual}
	SectionPreThermo      = PhotoSection{Phase: PhasePre, Category: CategoryThermo}
	SectionPreObservation = PhotoSection{Phase: PhasePre, Category: CategoryObservation}
	SectionPostVisual     = PhotoSection{Phase: PhasePost, Category: CategoryVisual}
)

// PhotoItem is a locally captured image attached to a session.
// ID is the capture URI and acts as the natural key.
type PhotoItem struct {
	ID         string        `json:"id"`
	URI        string        `json:"uri"`
	Status     PhotoStatus   `json:"status"`
	RemotePath string        `json:"remotePath,omitempty"`
	URL        string        `json:"url,omitempty"`
	Category   PhotoCategory `json:"category,omitempty"`
	CapturedAt *time.Time    `json:"capturedAt,omitempty"`
}

// NewPhotoItem creates a pending photo for a capture URI
func NewPhotoItem(uri string) (*PhotoItem, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, ErrEmptyPhotoURI
	}
	return &PhotoItem{
		ID:     uri,
		URI:    uri,
		Status: PhotoPending,
	}, nil
}

// IsUploaded reports whether the remote write was confirmed
func (p PhotoItem) IsUploaded() bool {
	return p.Status == PhotoDone && p.URL != ""
}
