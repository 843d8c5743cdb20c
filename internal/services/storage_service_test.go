package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/models"
)

func setupTestStore(t *testing.T) (*LocalPhotoStore, string) {
	tempDir := t.TempDir()
	store, err := NewLocalPhotoStore(tempDir, nil, 1)
	require.NoError(t, err)
	return store, tempDir
}

func TestLocalPhotoStore_Store(t *testing.T) {
	t.Run("stores file in Year/Month folder", func(t *testing.T) {
		store, _ := setupTestStore(t)

		content := []byte("fake image content")
		capturedAt := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

		uri, err := store.Store(bytes.NewReader(content), "IMG_0001.jpg", capturedAt, int64(len(content)))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "2024/03/"))
		assert.True(t, strings.HasSuffix(uri, ".jpg"))
		assert.True(t, store.Exists(uri))

		data, err := store.Read(uri)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("repeated camera names get distinct uris", func(t *testing.T) {
		store, _ := setupTestStore(t)
		now := time.Now()

		uri1, err := store.Store(bytes.NewReader([]byte("a")), "IMG_0001.jpg", now, 1)
		require.NoError(t, err)
		uri2, err := store.Store(bytes.NewReader([]byte("b")), "IMG_0001.jpg", now, 1)
		require.NoError(t, err)

		assert.NotEqual(t, uri1, uri2)
	})

	t.Run("rejects declared size over limit", func(t *testing.T) {
		store, _ := setupTestStore(t)

		_, err := store.Store(bytes.NewReader([]byte("x")), "big.jpg", time.Now(), 2*1024*1024)
		assert.ErrorIs(t, err, models.ErrFileTooLarge)
	})

	t.Run("rejects oversized stream and leaves nothing behind", func(t *testing.T) {
		store, dir := setupTestStore(t)
		capturedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		big := bytes.Repeat([]byte("x"), 1024*1024+10)
		_, err := store.Store(bytes.NewReader(big), "big.jpg", capturedAt, 0)
		assert.ErrorIs(t, err, models.ErrFileTooLarge)

		entries, err := os.ReadDir(filepath.Join(dir, "2024", "01"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects unknown extension", func(t *testing.T) {
		store, _ := setupTestStore(t)

		_, err := store.Store(bytes.NewReader([]byte("x")), "notes.txt", time.Now(), 1)
		assert.ErrorIs(t, err, models.ErrInvalidExtension)
	})

	t.Run("accepts heic", func(t *testing.T) {
		store, _ := setupTestStore(t)

		uri, err := store.Store(bytes.NewReader([]byte("x")), "IMG_0002.HEIC", time.Now(), 1)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(uri, ".heic"))
	})
}

func TestLocalPhotoStore_Read(t *testing.T) {
	store, _ := setupTestStore(t)

	t.Run("missing file is ErrPhotoFileMissing", func(t *testing.T) {
		_, err := store.Read("2024/01/missing.jpg")
		assert.ErrorIs(t, err, models.ErrPhotoFileMissing)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		_, err := store.Read("../../etc/passwd")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})
}

func TestLocalPhotoStore_Delete(t *testing.T) {
	store, _ := setupTestStore(t)

	uri, err := store.Store(bytes.NewReader([]byte("x")), "a.jpg", time.Now(), 1)
	require.NoError(t, err)

	assert.True(t, store.Delete(uri))
	assert.False(t, store.Exists(uri))
	assert.False(t, store.Delete(uri))
	assert.False(t, store.Delete(""))
}

func TestNewLocalPhotoStore_RequiresPath(t *testing.T) {
	_, err := NewLocalPhotoStore("  ", nil, 1)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"photo.jpg", "photo.jpg"},
		{"/path/to/photo.jpg", "photo.jpg"},
		{"photo:1.jpg", "photo_1.jpg"},
		{"pho*to?.jpg", "pho_to_.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeFilename(tt.input))
		})
	}
}
