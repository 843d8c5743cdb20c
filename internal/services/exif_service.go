package services

import (
	"bytes"
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMetadata is what the inspection keeps from a photo's EXIF block
type CaptureMetadata struct {
	CapturedAt  *time.Time
	Orientation int
	Latitude    *float64
	Longitude   *float64
}

// EXIFService extracts capture metadata from images
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// ExtractFromBytes extracts capture metadata from image bytes
func (s *EXIFService) ExtractFromBytes(data []byte) *CaptureMetadata {
	return s.ExtractFromReader(bytes.NewReader(data))
}

// ExtractFromReader extracts capture metadata from an io.Reader.
// Images without EXIF (screenshots, PNG) yield the defaults.
func (s *EXIFService) ExtractFromReader(r io.Reader) *CaptureMetadata {
	result := &CaptureMetadata{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return result
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
			result.Orientation = val
		}
	}

	if tm, err := x.DateTime(); err == nil {
		utc := tm.UTC()
		result.CapturedAt = &utc
	}

	if lat, lng, err := x.LatLong(); err == nil {
		result.Latitude = &lat
		result.Longitude = &lng
	}

	return result
}

// CaptureTime returns the EXIF capture time or fallback
func (m *CaptureMetadata) CaptureTime(fallback time.Time) time.Time {
	if m == nil || m.CapturedAt == nil {
		return fallback
	}
	return *m.CapturedAt
}
