package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhotoItem(t *testing.T) {
	t.Run("creates pending photo keyed by uri", func(t *testing.T) {
		uri := "2024/03/panel_front.jpg"

		photo, err := NewPhotoItem(uri)

		require.NoError(t, err)
		assert.Equal(t, uri, photo.ID)
		assert.Equal(t, uri, photo.URI)
		assert.Equal(t, PhotoPending, photo.Status)
		assert.Empty(t, photo.URL)
		assert.False(t, photo.IsUploaded())
	})

	t.Run("rejects empty uri", func(t *testing.T) {
		_, err := NewPhotoItem("  ")
		assert.ErrorIs(t, err, ErrEmptyPhotoURI)
	})

	t.Run("is uploaded only when done with a url", func(t *testing.T) {
		photo := PhotoItem{ID: "a", Status: PhotoDone}
		assert.False(t, photo.IsUploaded())

		photo.URL = "https://cdn.example.com/a.jpg"
		assert.True(t, photo.IsUploaded())
	})
}

func TestParsePhotoSection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected PhotoSection
		wantErr  bool
	}{
		{"pre visual", "pre.visual", SectionPreVisual, false},
		{"pre thermo", "pre.thermo", SectionPreThermo, false},
		{"post visual", "post.visual", SectionPostVisual, false},
		{"mixed case", " Pre.Observation ", SectionPreObservation, false},
		{"missing dot", "previsual", PhotoSection{}, true},
		{"unknown phase", "during.visual", PhotoSection{}, true},
		{"unknown category", "pre.infrared", PhotoSection{}, true},
		{"empty", "", PhotoSection{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section, err := ParsePhotoSection(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhotoSection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, section)
			assert.Equal(t, tt.expected.String(), section.String())
		})
	}
}
