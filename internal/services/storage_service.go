package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/inspector/internal/models"
)

// LocalPhotoStore keeps captured images on the device under Year/Month
// folders until they are uploaded. The relative path is the photo URI.
type LocalPhotoStore struct {
	basePath          string
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
}

// NewLocalPhotoStore creates a new LocalPhotoStore
func NewLocalPhotoStore(basePath string, allowedExtensions []string, maxFileSizeMB int64) (*LocalPhotoStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	extSet := make(map[string]bool)
	if len(allowedExtensions) == 0 {
		allowedExtensions = []string{".jpg", ".jpeg", ".png", ".heic", ".heif"}
	}
	for _, ext := range allowedExtensions {
		extSet[strings.ToLower(ext)] = true
	}

	return &LocalPhotoStore{
		basePath:          absPath,
		allowedExtensions: extSet,
		maxFileSizeBytes:  maxFileSizeMB * 1024 * 1024,
	}, nil
}

// Store writes a capture to disk and returns its URI. The file is synced
// before returning so a crash right after capture does not lose it.
func (s *LocalPhotoStore) Store(reader io.Reader, originalFilename string, capturedAt time.Time, fileSize int64) (string, error) {
	if fileSize > s.maxFileSizeBytes {
		return "", models.ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalFilename)))
	if !s.allowedExtensions[ext] {
		return "", models.ErrInvalidExtension
	}

	relativeFolder := filepath.Join(capturedAt.Format("2006"), capturedAt.Format("01"))
	if err := os.MkdirAll(filepath.Join(s.basePath, relativeFolder), 0755); err != nil {
		return "", err
	}

	// Capture names from cameras repeat (IMG_0001.jpg), so files are keyed by uuid
	relativePath := filepath.Join(relativeFolder, uuid.New().String()+ext)
	absolutePath := filepath.Join(s.basePath, relativePath)
	if !strings.HasPrefix(absolutePath, s.basePath) {
		return "", models.ErrPathTraversal
	}

	file, err := os.OpenFile(absolutePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}

	// Read one byte past the limit to detect oversized streams of unknown length
	written, err := io.Copy(file, io.LimitReader(reader, s.maxFileSizeBytes+1))
	if err == nil && written > s.maxFileSizeBytes {
		err = models.ErrFileTooLarge
	}
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(absolutePath)
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// Read returns the bytes of a stored photo
func (s *LocalPhotoStore) Read(uri string) ([]byte, error) {
	fullPath, err := s.GetFullPath(uri)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrPhotoFileMissing, uri)
	}
	return data, err
}

// Delete removes a stored photo
func (s *LocalPhotoStore) Delete(uri string) bool {
	if strings.TrimSpace(uri) == "" {
		return false
	}

	fullPath, err := s.GetFullPath(uri)
	if err != nil {
		return false
	}
	return os.Remove(fullPath) == nil
}

// GetFullPath returns the absolute path for a URI
func (s *LocalPhotoStore) GetFullPath(uri string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", fmt.Errorf("photo uri cannot be empty")
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(uri)))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}
	return absPath, nil
}

// Exists checks if a photo exists at the given URI
func (s *LocalPhotoStore) Exists(uri string) bool {
	fullPath, err := s.GetFullPath(uri)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// sanitizeFilename removes path components and invalid characters
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
