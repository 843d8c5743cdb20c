package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/repository"
)

// DefaultSweepGrace keeps fresh captures out of a sweep. A capture is written
// to disk before its session is saved, so a young unreferenced file may still
// be on its way into a session.
const DefaultSweepGrace = 24 * time.Hour

// SweepResult reports one pass over the capture directory
type SweepResult struct {
	FilesScanned int       `json:"filesScanned"`
	Orphans      []string  `json:"orphans"`
	Removed      int       `json:"removed"`
	DryRun       bool      `json:"dryRun"`
	Errors       []string  `json:"errors,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	Duration     string    `json:"duration"`
}

// CaptureSweeper removes local capture files that no session and no open
// queue entry references any more. They are left behind when a photo is
// removed after its upload started, or when the agent stops between
// writing a capture and saving its session.
type CaptureSweeper struct {
	sessions repository.SessionStore
	queue    *SyncQueue
	store    *LocalPhotoStore
	grace    time.Duration

	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewCaptureSweeper creates a sweeper. A non-positive grace uses DefaultSweepGrace.
func NewCaptureSweeper(sessions repository.SessionStore, queue *SyncQueue, store *LocalPhotoStore, grace time.Duration) *CaptureSweeper {
	if grace <= 0 {
		grace = DefaultSweepGrace
	}
	return &CaptureSweeper{
		sessions: sessions,
		queue:    queue,
		store:    store,
		grace:    grace,
		now:      time.Now,
	}
}

// Sweep walks the capture directory once. With dryRun set, orphans are
// reported but kept.
func (s *CaptureSweeper) Sweep(ctx context.Context, dryRun bool) (*SweepResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, models.ErrSweepRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, span := observability.StartServiceSpan(ctx, "CaptureSweeper", "Sweep")
	defer span.End()

	referenced, err := s.referenced(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	start := s.now()
	cutoff := start.Add(-s.grace)
	result := &SweepResult{Orphans: []string{}, DryRun: dryRun, StartedAt: start}

	filepath.Walk(s.store.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, "walk error: "+err.Error())
			return nil
		}
		if info.IsDir() {
			if path != s.store.basePath && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.store.allowedExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			return nil
		}

		rel, err := filepath.Rel(s.store.basePath, path)
		if err != nil {
			result.Errors = append(result.Errors, "path error for "+path+": "+err.Error())
			return nil
		}
		uri := filepath.ToSlash(rel)
		result.FilesScanned++

		if referenced[uri] || info.ModTime().After(cutoff) {
			return nil
		}

		result.Orphans = append(result.Orphans, uri)
		if !dryRun {
			if s.store.Delete(uri) {
				result.Removed++
			} else {
				result.Errors = append(result.Errors, "failed to remove "+uri)
			}
		}
		return nil
	})

	result.Duration = s.now().Sub(start).Round(time.Millisecond).String()
	observability.SetSuccess(span)

	log := observability.WithContext(ctx).WithFields(map[string]interface{}{
		"files_scanned": result.FilesScanned,
		"orphans":       len(result.Orphans),
		"removed":       result.Removed,
		"dry_run":       dryRun,
	})
	if len(result.Orphans) > 0 {
		log.Info("Capture sweep found orphaned files")
	} else {
		log.Debug("Capture sweep completed")
	}
	if len(result.Errors) > 0 {
		log.Warnf("Capture sweep encountered %d errors", len(result.Errors))
	}
	return result, nil
}

// referenced collects every URI still owned by a session or an unfinished upload
func (s *CaptureSweeper) referenced(ctx context.Context) (map[string]bool, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]bool)
	for _, session := range sessions {
		for _, photo := range session.AllPhotos() {
			refs[photo.URI] = true
		}
	}

	entries, err := s.queue.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.EntityType == models.EntityPhoto && entry.Status != models.SyncDone {
			refs[entry.LocalID] = true
		}
	}
	return refs, nil
}
