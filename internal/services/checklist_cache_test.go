package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldsync/inspector/internal/models"
)

func TestChecklistCache(t *testing.T) {
	now := time.Now()
	c := NewChecklistCache(time.Minute)
	c.now = func() time.Time { return now }

	checklist := &models.Checklist{EquipmentID: "eq-1"}
	c.Set("eq-1", checklist)

	t.Run("hit", func(t *testing.T) {
		got, ok := c.Get("eq-1")
		assert.True(t, ok)
		assert.Same(t, checklist, got)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok := c.Get("eq-2")
		assert.False(t, ok)
	})

	t.Run("expired entries are not served", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, ok := c.Get("eq-1")
		assert.False(t, ok)

		c.Set("eq-3", &models.Checklist{EquipmentID: "eq-3"})
		assert.Equal(t, 1, c.Size(), "expired entries are evicted on write")
	})

	t.Run("clear", func(t *testing.T) {
		c.Set("eq-4", &models.Checklist{EquipmentID: "eq-4"})
		c.Clear()
		assert.Zero(t, c.Size())
	})
}
