package services

import (
	"sync"
	"time"

	"github.com/fieldsync/inspector/internal/models"
)

// ChecklistCache is a thread-safe in-memory cache of checklist templates
// keyed by equipment ID. Every session mutation validates against the
// template, so rebuilding it from the mirror on each call is avoided.
type ChecklistCache struct {
	mu    sync.RWMutex
	items map[string]*checklistItem
	ttl   time.Duration
	now   func() time.Time
}

type checklistItem struct {
	checklist *models.Checklist
	expiresAt time.Time
}

// NewChecklistCache creates a cache whose entries live for ttl
func NewChecklistCache(ttl time.Duration) *ChecklistCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ChecklistCache{
		items: make(map[string]*checklistItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached checklist if it exists and hasn't expired
func (c *ChecklistCache) Get(equipmentID string) (*models.Checklist, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[equipmentID]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.checklist, true
}

// Set stores a checklist
func (c *ChecklistCache) Set(equipmentID string, checklist *models.Checklist) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[equipmentID] = &checklistItem{
		checklist: checklist,
		expiresAt: c.now().Add(c.ttl),
	}
	c.evictExpiredLocked()
}

// Delete removes one cached checklist
func (c *ChecklistCache) Delete(equipmentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, equipmentID)
}

// Clear drops every cached checklist. A pull calls it after the mirror changes.
func (c *ChecklistCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*checklistItem)
}

// Size returns the number of cached checklists
func (c *ChecklistCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ChecklistCache) evictExpiredLocked() {
	now := c.now()
	for id, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, id)
		}
	}
}
