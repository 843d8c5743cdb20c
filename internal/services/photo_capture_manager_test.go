package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/models"
)

func TestPhotoCaptureManager_AddPhoto(t *testing.T) {
	rules, err := LoadPhotoRules("")
	require.NoError(t, err)
	m := NewPhotoCaptureManager(rules)

	t.Run("distribucion allows a single pre visual photo", func(t *testing.T) {
		s := newSession(t)

		added, err := m.AddPhoto(s, models.SubtypeDistribution, models.SectionPreVisual, models.PhotoItem{ID: "a.jpg", URI: "a.jpg"})
		require.NoError(t, err)
		assert.True(t, added)

		_, err = m.AddPhoto(s, models.SubtypeDistribution, models.SectionPreVisual, models.PhotoItem{ID: "b.jpg", URI: "b.jpg"})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasCode(models.IssuePhotoLimitReached))
		assert.Equal(t, models.StepPrePhotos, verr.Step)
		assert.Equal(t, 1, s.CountPhotos(models.SectionPreVisual))
	})

	t.Run("autosoportado allows two thermo photos", func(t *testing.T) {
		s := newSession(t)

		for _, id := range []string{"t1.jpg", "t2.jpg"} {
			added, err := m.AddPhoto(s, models.SubtypeSelfSupported, models.SectionPreThermo, models.PhotoItem{ID: id, URI: id})
			require.NoError(t, err)
			assert.True(t, added)
		}
		_, err := m.AddPhoto(s, models.SubtypeSelfSupported, models.SectionPreThermo, models.PhotoItem{ID: "t3.jpg", URI: "t3.jpg"})
		assert.Error(t, err)
	})

	t.Run("thermo is not used by distribucion", func(t *testing.T) {
		_, err := m.AddPhoto(newSession(t), models.SubtypeDistribution, models.SectionPreThermo, models.PhotoItem{ID: "t.jpg", URI: "t.jpg"})
		assert.ErrorIs(t, err, models.ErrInvalidPhotoSection)
	})

	t.Run("observation section is unlimited", func(t *testing.T) {
		s := newSession(t)
		for i := 0; i < 10; i++ {
			id := string(rune('a'+i)) + ".jpg"
			_, err := m.AddPhoto(s, models.SubtypeDistribution, models.SectionPreObservation, models.PhotoItem{ID: id, URI: id})
			require.NoError(t, err)
		}
		assert.Equal(t, 10, s.CountPhotos(models.SectionPreObservation))
	})

	t.Run("re-adding the same uri is a no-op", func(t *testing.T) {
		s := newSession(t)
		photo := models.PhotoItem{ID: "a.jpg", URI: "a.jpg"}

		_, err := m.AddPhoto(s, models.SubtypeDistribution, models.SectionPostVisual, photo)
		require.NoError(t, err)
		added, err := m.AddPhoto(s, models.SubtypeDistribution, models.SectionPostVisual, photo)
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, 1, s.CountPhotos(models.SectionPostVisual))
	})

	t.Run("new photos start pending", func(t *testing.T) {
		s := newSession(t)
		_, err := m.AddPhoto(s, models.SubtypeDistribution, models.SectionPostVisual, models.PhotoItem{ID: "a.jpg", URI: "a.jpg", Status: models.PhotoDone})
		require.NoError(t, err)

		photo, _, ok := s.FindPhoto("a.jpg")
		require.True(t, ok)
		assert.Equal(t, models.PhotoPending, photo.Status)
	})

	t.Run("empty uri is rejected", func(t *testing.T) {
		_, err := m.AddPhoto(newSession(t), models.SubtypeDistribution, models.SectionPostVisual, models.PhotoItem{})
		assert.ErrorIs(t, err, models.ErrEmptyPhotoURI)
	})
}

func TestPhotoCaptureManager_RemovePhoto(t *testing.T) {
	rules, err := LoadPhotoRules("")
	require.NoError(t, err)
	m := NewPhotoCaptureManager(rules)
	s := newSession(t)

	_, err = m.AddPhoto(s, models.SubtypeDistribution, models.SectionPreVisual, models.PhotoItem{ID: "a.jpg", URI: "a.jpg"})
	require.NoError(t, err)

	assert.False(t, m.RemovePhoto(s, models.SectionPostVisual, "a.jpg"))
	assert.True(t, m.RemovePhoto(s, models.SectionPreVisual, "a.jpg"))
	assert.Equal(t, 0, s.CountPhotos(models.SectionPreVisual))

	// freed slot can be reused
	_, err = m.AddPhoto(s, models.SubtypeDistribution, models.SectionPreVisual, models.PhotoItem{ID: "b.jpg", URI: "b.jpg"})
	assert.NoError(t, err)
}

func TestParsePhotoRules(t *testing.T) {
	t.Run("rejects unknown section", func(t *testing.T) {
		_, err := ParsePhotoRules([]byte("defaults:\n  pre.selfie: {min: 1, max: 1}\n"))
		assert.Error(t, err)
	})

	t.Run("rejects min above max", func(t *testing.T) {
		_, err := ParsePhotoRules([]byte("defaults:\n  pre.visual: {min: 3, max: 1}\n"))
		assert.Error(t, err)
	})

	t.Run("subtype overrides defaults", func(t *testing.T) {
		rules, err := LoadPhotoRules("")
		require.NoError(t, err)

		limits, ok := rules.Limits(models.SubtypeDistribution, models.SectionPreVisual)
		require.True(t, ok)
		assert.Equal(t, 1, limits.Max)

		limits, ok = rules.Limits("unknown", models.SectionPreVisual)
		require.True(t, ok)
		assert.Equal(t, 3, limits.Max)
	})
}
