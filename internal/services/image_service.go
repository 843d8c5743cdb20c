package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
)

// ImageService normalises captures before upload: HEIC is decoded, EXIF
// orientation is baked in, the long edge is capped and the result is JPEG.
type ImageService struct {
	exif         *EXIFService
	maxDimension int
	quality      int
}

// NewImageService creates a new ImageService
func NewImageService(exifService *EXIFService, maxDimension, quality int) *ImageService {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &ImageService{
		exif:         exifService,
		maxDimension: maxDimension,
		quality:      quality,
	}
}

// PrepareForUpload returns the JPEG bytes to send for a stored capture.
// Data that cannot be decoded is returned unchanged so the server can still
// keep the original evidence.
func (s *ImageService) PrepareForUpload(data []byte, uri string) ([]byte, error) {
	orientation := s.exif.ExtractFromBytes(data).Orientation

	var img image.Image
	var err error
	if IsHEIC(uri) {
		img, err = decodeHEIC(data)
		if err != nil {
			return nil, err
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return data, nil
		}
		if orientation == 1 && s.fits(img) && isJPEG(uri) {
			return data, nil
		}
	}

	img = applyOrientation(img, orientation)
	if !s.fits(img) {
		w, h := scaledSize(img.Bounds().Dx(), img.Bounds().Dy(), s.maxDimension)
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode upload image: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ImageService) fits(img image.Image) bool {
	if s.maxDimension <= 0 {
		return true
	}
	b := img.Bounds()
	return b.Dx() <= s.maxDimension && b.Dy() <= s.maxDimension
}

// scaledSize keeps the aspect ratio while bounding the long edge to maxDim
func scaledSize(width, height, maxDim int) (int, int) {
	if width > height {
		if width > maxDim {
			return maxDim, height * maxDim / width
		}
		return width, height
	}
	if height > maxDim {
		return width * maxDim / height, maxDim
	}
	return width, height
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format (requires special handling)
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}

func isJPEG(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg"
}

// decodeHEIC decodes a HEIC/HEIF image using goheif (pure Go)
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
	}
	return img, nil
}
