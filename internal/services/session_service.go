package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/remote"
	"github.com/fieldsync/inspector/internal/repository"
)

// SessionService owns the inspection sessions. Every mutator loads the
// latest snapshot, applies one change, bumps lastUpdated and persists the
// complete snapshot, all under the session's lock.
type SessionService struct {
	sessions  repository.SessionStore
	equipment repository.EquipmentStore
	queue     *SyncQueue
	validator *ChecklistValidator
	photos    *PhotoCaptureManager
	store     *LocalPhotoStore
	hasher    *HashService
	exif      *EXIFService
	locks     *keyedMutex

	checklists *ChecklistCache
}

// NewSessionService creates a new SessionService
func NewSessionService(
	sessions repository.SessionStore,
	equipment repository.EquipmentStore,
	queue *SyncQueue,
	validator *ChecklistValidator,
	photos *PhotoCaptureManager,
	store *LocalPhotoStore,
	hasher *HashService,
	exifService *EXIFService,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		equipment: equipment,
		queue:     queue,
		validator: validator,
		photos:    photos,
		store:     store,
		hasher:    hasher,
		exif:      exifService,
		locks:     newKeyedMutex(),

		checklists: NewChecklistCache(0),
	}
}

// Open returns the session for an equipment and maintenance pair, creating
// and persisting an empty one when none exists. An unreadable snapshot is
// logged and replaced with a fresh session.
func (s *SessionService) Open(ctx context.Context, equipmentID, maintenanceID string) (*models.MaintenanceSession, error) {
	if equipmentID == "" {
		return nil, models.ErrEmptyEquipmentID
	}
	key := models.SessionKey(equipmentID, maintenanceID)

	unlock := s.locks.Lock(key)
	defer unlock()
	return s.loadOrCreate(ctx, key)
}

// OpenByKey is Open addressed by session key
func (s *SessionService) OpenByKey(ctx context.Context, key string) (*models.MaintenanceSession, error) {
	equipmentID, maintenanceID, err := models.ParseSessionKey(key)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, equipmentID, maintenanceID)
}

// List returns summaries of every stored session
func (s *SessionService) List(ctx context.Context) ([]models.SessionSummary, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, models.SessionToSummary(session))
	}
	return summaries, nil
}

// loadOrCreate must be called with the session lock held
func (s *SessionService) loadOrCreate(ctx context.Context, key string) (*models.MaintenanceSession, error) {
	session, err := s.sessions.Get(ctx, key)
	if errors.Is(err, models.ErrCorruptSession) {
		observability.WithContext(ctx).WithField("session_key", key).WithError(err).
			Warn("Stored session is unreadable, starting a fresh one")
		session, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	if session != nil {
		session.EnsureMaps()
		return session, nil
	}

	equipmentID, maintenanceID, err := models.ParseSessionKey(key)
	if err != nil {
		return nil, err
	}
	session, err = models.NewMaintenanceSession(equipmentID, maintenanceID)
	if err != nil {
		return nil, err
	}
	if eq, err := s.equipment.GetByID(ctx, equipmentID); err == nil && eq != nil {
		session.PropertyID = eq.PropertyID
	}

	if err := s.sessions.Set(ctx, key, session); err != nil {
		return nil, fmt.Errorf("persist new session %s: %w", key, err)
	}
	observability.WithContext(ctx).WithField("session_key", key).Info("Started maintenance session")
	return session, nil
}

// mutate runs fn on the latest snapshot and persists the result when fn
// succeeds. Finalized sessions are read-only.
func (s *SessionService) mutate(ctx context.Context, key string, fn func(*models.MaintenanceSession) error) (*models.MaintenanceSession, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.loadOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	if session.IsFinalized() {
		return nil, models.ErrSessionFinalized
	}
	if err := fn(session); err != nil {
		return nil, err
	}

	session.Touch()
	if err := s.sessions.Set(ctx, key, session); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", key, err)
	}
	return session, nil
}

// Checklist returns the template a session is validated against
func (s *SessionService) Checklist(ctx context.Context, session *models.MaintenanceSession) (*models.Checklist, error) {
	if checklist, ok := s.checklists.Get(session.EquipmentID); ok {
		return checklist, nil
	}

	eq, err := s.equipment.GetByID(ctx, session.EquipmentID)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrEquipmentNotFound, session.EquipmentID)
	}
	checklist := models.BuildChecklist(eq)
	s.checklists.Set(session.EquipmentID, checklist)
	return checklist, nil
}

// InvalidateChecklists forgets cached templates after the equipment mirror changed
func (s *SessionService) InvalidateChecklists() {
	s.checklists.Clear()
}

func (s *SessionService) checklistItem(ctx context.Context, session *models.MaintenanceSession, itemID string) (*models.ChecklistItem, error) {
	checklist, err := s.Checklist(ctx, session)
	if err != nil {
		return nil, err
	}
	item, ok := checklist.Find(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownItem, itemID)
	}
	return item, nil
}

// EnterMeasurement records a voltage or amperage reading
func (s *SessionService) EnterMeasurement(ctx context.Context, key, itemID string, field models.MeasurementField, value *float64) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		item, err := s.checklistItem(ctx, session, itemID)
		if err != nil {
			return err
		}
		return s.validator.OnMeasurementEntered(session, item, field, value)
	})
}

// ToggleStatus marks an item OK or flagged
func (s *SessionService) ToggleStatus(ctx context.Context, key, itemID string, ok bool) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		item, err := s.checklistItem(ctx, session, itemID)
		if err != nil {
			return err
		}
		return s.validator.OnStatusToggle(session, item, ok)
	})
}

// SetObservation sets the note of a flagged item. A non-empty photoURI must
// name a photo already captured into the session.
func (s *SessionService) SetObservation(ctx context.Context, key, itemID, note, photoURI string) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		if _, err := s.checklistItem(ctx, session, itemID); err != nil {
			return err
		}
		obs := session.ItemObservations[itemID]
		obs.Note = note
		if photoURI != "" {
			if _, _, found := session.FindPhoto(photoURI); !found {
				return fmt.Errorf("%w: %s", models.ErrPhotoNotFound, photoURI)
			}
			obs.PhotoURI = photoURI
		}
		session.ItemObservations[itemID] = obs
		return nil
	})
}

// SetProtocolAnswer answers one protocol question
func (s *SessionService) SetProtocolAnswer(ctx context.Context, key, questionKey string, answer bool) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		checklist, err := s.Checklist(ctx, session)
		if err != nil {
			return err
		}
		for _, q := range checklist.Protocol {
			if q.Key == questionKey {
				session.Protocol[questionKey] = answer
				return nil
			}
		}
		return fmt.Errorf("%w: protocol question %s", models.ErrUnknownItem, questionKey)
	})
}

// SetInstruments replaces the measurement instruments used
func (s *SessionService) SetInstruments(ctx context.Context, key string, instruments []models.Instrument) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		if instruments == nil {
			instruments = []models.Instrument{}
		}
		session.SelectedInstruments = instruments
		return nil
	})
}

// CapturePhoto stores a captured image, adds it to section and queues its
// upload. When itemID is set the photo also becomes that item's observation photo.
func (s *SessionService) CapturePhoto(ctx context.Context, key string, section models.PhotoSection, itemID, filename string, r io.Reader) (*models.PhotoItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	meta := s.exif.ExtractFromBytes(data)
	capturedAt := meta.CaptureTime(time.Now().UTC())
	uri, err := s.store.Store(bytes.NewReader(data), filename, capturedAt, int64(len(data)))
	if err != nil {
		return nil, err
	}
	checksum := s.hasher.ComputeHashBytes(data)

	var added models.PhotoItem
	session, err := s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		if itemID != "" {
			if _, err := s.checklistItem(ctx, session, itemID); err != nil {
				return err
			}
		}
		subtype, err := s.subtype(ctx, session)
		if err != nil {
			return err
		}

		photo, err := models.NewPhotoItem(uri)
		if err != nil {
			return err
		}
		photo.CapturedAt = &capturedAt
		if _, err := s.photos.AddPhoto(session, subtype, section, *photo); err != nil {
			return err
		}

		if itemID != "" {
			obs := session.ItemObservations[itemID]
			obs.PhotoURI = photo.ID
			session.ItemObservations[itemID] = obs
		}
		found, _, _ := session.FindPhoto(photo.ID)
		added = *found
		return nil
	})
	if err != nil {
		s.store.Delete(uri)
		return nil, err
	}

	if err := s.enqueuePhoto(ctx, session, added, checksum); err != nil {
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"session_key": key,
			"photo_id":    added.ID,
		}).WithError(err).Warn("Photo stored but not queued, it will be queued on finalize")
	}
	return &added, nil
}

func (s *SessionService) subtype(ctx context.Context, session *models.MaintenanceSession) (string, error) {
	checklist, err := s.Checklist(ctx, session)
	if err != nil {
		return "", err
	}
	return checklist.Subtype, nil
}

func (s *SessionService) enqueuePhoto(ctx context.Context, session *models.MaintenanceSession, photo models.PhotoItem, checksum string) error {
	phase := models.PhasePre
	if _, p, ok := session.FindPhoto(photo.ID); ok {
		phase = p
	}
	payload := models.PhotoUploadPayload{
		PhotoID:  photo.ID,
		URI:      photo.URI,
		Phase:    phase,
		Category: photo.Category,
		Folder:   remote.PhotoFolder(session.EquipmentID, session.MaintenanceID),
		Checksum: checksum,
	}
	entry, err := models.NewSyncQueueEntry(models.EntityPhoto, session.SessionKey, photo.ID, payload)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, entry)
}

// RemovePhoto detaches a photo from a section. A queued upload that has not
// started is dropped together with the local file; uploaded evidence stays
// in the remote store.
func (s *SessionService) RemovePhoto(ctx context.Context, key string, section models.PhotoSection, photoID string) (*models.MaintenanceSession, error) {
	session, err := s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		if !s.photos.RemovePhoto(session, section, photoID) {
			return fmt.Errorf("%w: %s", models.ErrPhotoNotFound, photoID)
		}
		for itemID, obs := range session.ItemObservations {
			if obs.PhotoURI == photoID {
				obs.PhotoURI = ""
				session.ItemObservations[itemID] = obs
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dropped, err := s.queue.DropUnstarted(ctx, key, photoID)
	if err != nil {
		return nil, err
	}
	if dropped {
		s.store.Delete(photoID)
	}
	return session, nil
}

// Validate reports whether the current step can be left and why not
func (s *SessionService) Validate(ctx context.Context, key string) (*models.SessionResponse, error) {
	session, err := s.OpenByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	checklist, err := s.Checklist(ctx, session)
	if err != nil {
		return nil, err
	}

	resp := &models.SessionResponse{Session: session, CanAdvance: true, Issues: []models.ValidationIssue{}}
	if verr := s.validator.ValidateStep(session, checklist, s.photos.Rules(), session.CurrentStep); verr != nil {
		resp.CanAdvance = false
		resp.Issues = verr.Issues
	}
	return resp, nil
}

// Advance moves to the next step when the current one is complete
func (s *SessionService) Advance(ctx context.Context, key string) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		checklist, err := s.Checklist(ctx, session)
		if err != nil {
			return err
		}
		if verr := s.validator.ValidateStep(session, checklist, s.photos.Rules(), session.CurrentStep); verr != nil {
			return verr
		}
		session.CurrentStep = session.CurrentStep.Next()
		return nil
	})
}

// GoBack returns to the previous step. Going back never validates.
func (s *SessionService) GoBack(ctx context.Context, key string) (*models.MaintenanceSession, error) {
	return s.mutate(ctx, key, func(session *models.MaintenanceSession) error {
		session.CurrentStep = session.CurrentStep.Previous()
		return nil
	})
}

// Finalize validates every step, freezes the session and queues its
// snapshot as a maintenance_response entry. The frozen session is written
// before the entry is queued, and a session keeps a single open response
// entry, so calling Finalize again returns that entry.
func (s *SessionService) Finalize(ctx context.Context, key string) (*models.SyncQueueEntry, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.loadOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	if session.IsUploaded {
		return nil, models.ErrSessionUploaded
	}

	existing, err := s.openResponseEntry(ctx, key)
	if err != nil {
		return nil, err
	}

	if session.IsFinalized() {
		if existing != nil {
			return existing, nil
		}
		// frozen by a run that stopped before its entry was queued
		observability.WithContext(ctx).WithField("session_key", key).Warn("Finalized session had no queued response, queueing it now")
	} else {
		if existing != nil && existing.Status == models.SyncSyncing {
			return nil, fmt.Errorf("%w: upload in progress", models.ErrSessionFinalized)
		}

		checklist, err := s.Checklist(ctx, session)
		if err != nil {
			return nil, err
		}
		if verr := s.validator.ValidateAll(session, checklist, s.photos.Rules()); verr != nil {
			return nil, verr
		}
		if err := s.ensurePhotoEntries(ctx, session); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		session.FinalizedAt = &now
		session.CurrentStep = models.StepSummary
		session.Touch()
		if err := s.sessions.Set(ctx, key, session); err != nil {
			return nil, fmt.Errorf("persist session %s: %w", key, err)
		}
	}

	entry, err := s.queueResponse(ctx, key, session, existing)
	if err != nil {
		return nil, err
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"session_key": key,
		"entry_id":    entry.ID,
	}).Info("Finalized maintenance session")
	return entry, nil
}

// openResponseEntry returns the session's maintenance_response entry that
// is not acknowledged yet, if any
func (s *SessionService) openResponseEntry(ctx context.Context, key string) (*models.SyncQueueEntry, error) {
	entries, err := s.queue.ListBySession(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.EntityType == models.EntityMaintenanceResponse && entry.Status != models.SyncDone {
			return entry, nil
		}
	}
	return nil, nil
}

// queueResponse snapshots session into a pending maintenance_response
// entry. A stale entry left for the same session is replaced and its id
// kept, so the remote store keeps seeing one local reference.
func (s *SessionService) queueResponse(ctx context.Context, key string, session *models.MaintenanceSession, stale *models.SyncQueueEntry) (*models.SyncQueueEntry, error) {
	// The entry id doubles as the stable local reference sent with every retry
	entryID := uuid.New().String()
	if stale != nil {
		entryID = stale.ID
		if err := s.queue.Remove(ctx, stale.ID); err != nil {
			return nil, err
		}
	}

	payload := models.NewMaintenanceResponsePayload(session)
	payload.LocalRef = entryID
	entry, err := models.NewSyncQueueEntry(models.EntityMaintenanceResponse, key, key, payload)
	if err != nil {
		return nil, err
	}
	entry.ID = entryID
	if err := s.queue.Enqueue(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ensurePhotoEntries queues any photo whose capture-time enqueue was lost
func (s *SessionService) ensurePhotoEntries(ctx context.Context, session *models.MaintenanceSession) error {
	entries, err := s.queue.ListBySession(ctx, session.SessionKey)
	if err != nil {
		return err
	}
	queued := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.EntityType == models.EntityPhoto {
			queued[e.LocalID] = true
		}
	}

	for _, photo := range session.AllPhotos() {
		if queued[photo.ID] || photo.IsUploaded() {
			continue
		}
		data, err := s.store.Read(photo.URI)
		if err != nil {
			return err
		}
		if err := s.enqueuePhoto(ctx, session, photo, s.hasher.ComputeHashBytes(data)); err != nil {
			return err
		}
	}
	return nil
}

// Discard throws a session away with its unsent photos and queued work.
// A session whose upload is in flight cannot be discarded.
func (s *SessionService) Discard(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.sessions.Get(ctx, key)
	if err != nil && !errors.Is(err, models.ErrCorruptSession) {
		return err
	}

	entries, err := s.queue.ListBySession(ctx, key)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Status == models.SyncSyncing {
			return fmt.Errorf("%w: upload in progress", models.ErrSessionFinalized)
		}
	}

	if err := s.queue.DropSession(ctx, key); err != nil {
		return err
	}
	if session != nil {
		for _, photo := range session.AllPhotos() {
			if !photo.IsUploaded() {
				s.store.Delete(photo.URI)
			}
		}
	}
	if err := s.sessions.Delete(ctx, key); err != nil {
		return err
	}

	observability.WithContext(ctx).WithField("session_key", key).Info("Discarded maintenance session")
	return nil
}

// MergePhotoResult applies an upload outcome to the live session. Only the
// photo's status, url and remotePath change; everything the technician may
// be editing is left as is. A session or photo that is gone is ignored.
func (s *SessionService) MergePhotoResult(ctx context.Context, key, photoID string, status models.PhotoStatus, result *models.RemotePhoto) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.sessions.Get(ctx, key)
	if err != nil || session == nil {
		return err
	}
	photo, _, found := session.FindPhoto(photoID)
	if !found {
		return nil
	}

	photo.Status = status
	if result != nil {
		photo.URL = result.URL
		photo.RemotePath = result.RemotePath
	}
	return s.sessions.Set(ctx, key, session)
}

// MarkUploaded records the remote acknowledgement of a finalized session
func (s *SessionService) MarkUploaded(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.sessions.Get(ctx, key)
	if err != nil || session == nil {
		return err
	}
	session.IsUploaded = true
	return s.sessions.Set(ctx, key, session)
}

// Remove deletes an acknowledged session and its uploaded local files
func (s *SessionService) Remove(ctx context.Context, key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	session, err := s.sessions.Get(ctx, key)
	if err != nil && !errors.Is(err, models.ErrCorruptSession) {
		return err
	}
	if session != nil && !session.IsUploaded {
		return fmt.Errorf("refusing to remove session %s before upload is confirmed", key)
	}
	if session != nil {
		for _, photo := range session.AllPhotos() {
			s.store.Delete(photo.URI)
		}
	}
	return s.sessions.Delete(ctx, key)
}
