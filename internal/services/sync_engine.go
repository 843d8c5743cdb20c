package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/repository"
)

// RemoteAPI is the backend the engine reconciles with
type RemoteAPI interface {
	UploadPhoto(ctx context.Context, data []byte, folder string) (*models.RemotePhoto, error)
	InsertOrUpdateMaintenanceResponse(ctx context.Context, payload *models.MaintenanceResponsePayload) (string, error)
	FetchEquipmentDelta(ctx context.Context, propertyID string, since *time.Time) ([]*models.Equipment, error)
	FetchMaintenanceRecords(ctx context.Context, propertyID string) ([]*models.MaintenanceRecord, error)
}

// PushResult summarises one push cycle
type PushResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Waiting   int `json:"waiting"`
}

// PullResult summarises one pull cycle
type PullResult struct {
	Properties int      `json:"properties"`
	Equipment  int      `json:"equipment"`
	Records    int      `json:"records"`
	Failed     []string `json:"failed,omitempty"`
}

// SyncEngineDeps are the collaborators of a SyncEngine. Hub and Metrics are optional.
type SyncEngineDeps struct {
	Remote    RemoteAPI
	Sessions  *SessionService
	Store     repository.SessionStore
	Queue     *SyncQueue
	Equipment repository.EquipmentStore
	Records   repository.MaintenanceRecordStore
	PullState repository.PullStateStore
	Photos    *LocalPhotoStore
	Images    *ImageService
	Hasher    *HashService
	Hub       *WebSocketHub
	Metrics   *observability.SyncMetrics
	// Notifier may be nil
	Notifier Notifier
}

// notifyTimeout bounds one device notification
const notifyTimeout = 10 * time.Second

// SyncEngine drains the sync queue to the remote store and refreshes the
// local equipment mirror. At most one push and one pull run at a time;
// concurrent callers share the in-flight result.
type SyncEngine struct {
	deps  SyncEngineDeps
	cfg   config.Sync
	group singleflight.Group

	syncing atomic.Bool
	pulling atomic.Bool

	mu         sync.RWMutex
	lastPushAt *time.Time
	lastPullAt *time.Time
	lastError  string

	// work tracks detached push and pull runs so shutdown can wait for them
	workMu  sync.Mutex
	work    sync.WaitGroup
	stopped bool

	now func() time.Time
}

// NewSyncEngine creates a new SyncEngine
func NewSyncEngine(deps SyncEngineDeps, cfg config.Sync) *SyncEngine {
	if cfg.UploadTries == 0 {
		cfg.UploadTries = 1
	}
	return &SyncEngine{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
}

// PushData uploads every eligible queue entry. The work runs detached from
// ctx: a caller that gives up stops waiting, the uploads still finish.
func (e *SyncEngine) PushData(ctx context.Context) (*PushResult, error) {
	ch := e.group.DoChan("push", func() (interface{}, error) {
		if !e.track() {
			return nil, models.ErrEngineStopped
		}
		defer e.work.Done()
		return e.push(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PushResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PullData refreshes the equipment mirror and maintenance history
func (e *SyncEngine) PullData(ctx context.Context) (*PullResult, error) {
	ch := e.group.DoChan("pull", func() (interface{}, error) {
		if !e.track() {
			return nil, models.ErrEngineStopped
		}
		defer e.work.Done()
		return e.pull(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PullResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *SyncEngine) track() bool {
	e.workMu.Lock()
	defer e.workMu.Unlock()
	if e.stopped {
		return false
	}
	e.work.Add(1)
	return true
}

// Drain refuses new push and pull runs and waits for running ones, including
// runs whose callers already gave up. It returns ctx's error if they outlast it.
func (e *SyncEngine) Drain(ctx context.Context) error {
	e.workMu.Lock()
	e.stopped = true
	e.workMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.work.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecoverInterrupted returns entries a crash left in syncing to pending.
// Call it once before the first push.
func (e *SyncEngine) RecoverInterrupted(ctx context.Context) error {
	_, err := e.deps.Queue.RecoverInterrupted(ctx)
	return err
}

// Status is the passive badge state shown to the technician
func (e *SyncEngine) Status(ctx context.Context) (*models.SyncStatusResponse, error) {
	counts, err := e.deps.Queue.Counts(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return &models.SyncStatusResponse{
		Pending:    counts[models.SyncPending] + counts[models.SyncSyncing],
		Retrying:   counts[models.SyncError],
		Failed:     counts[models.SyncFatalError],
		Syncing:    e.syncing.Load(),
		Pulling:    e.pulling.Load(),
		LastPushAt: e.lastPushAt,
		LastPullAt: e.lastPullAt,
		LastError:  e.lastError,
	}, nil
}

// Retry re-arms a fatal entry on user request
func (e *SyncEngine) Retry(ctx context.Context, id string) (*models.SyncQueueEntry, error) {
	entry, err := e.deps.Queue.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.notifyEntry(entry)
	return entry, nil
}

func (e *SyncEngine) push(ctx context.Context) (*PushResult, error) {
	e.syncing.Store(true)
	defer e.syncing.Store(false)

	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "PushData")
	defer span.End()
	start := e.now()
	log := observability.WithContext(ctx)

	entries, err := e.deps.Queue.Eligible(ctx, start)
	if err != nil {
		observability.RecordError(span, err)
		e.setLastError(err)
		return nil, fmt.Errorf("list eligible entries: %w", err)
	}

	result := &PushResult{}
	// Photos first so a maintenance response queued in the same cycle can
	// reference the URLs they produce.
	for _, entry := range entries {
		if entry.EntityType != models.EntityPhoto {
			continue
		}
		switch e.uploadPhoto(ctx, entry) {
		case outcomeDone:
			result.Processed++
			result.Succeeded++
		case outcomeFailed:
			result.Processed++
			result.Failed++
		}
	}
	for _, entry := range entries {
		if entry.EntityType != models.EntityMaintenanceResponse {
			continue
		}
		switch e.uploadMaintenance(ctx, entry) {
		case outcomeDone:
			result.Processed++
			result.Succeeded++
		case outcomeFailed:
			result.Processed++
			result.Failed++
		case outcomeWaiting:
			result.Waiting++
		}
	}

	finished := e.now().UTC()
	e.mu.Lock()
	e.lastPushAt = &finished
	if result.Failed == 0 {
		e.lastError = ""
	}
	e.mu.Unlock()

	e.deps.Metrics.RecordPush(ctx, finished.Sub(start), result.Processed)
	if result.Processed > 0 || result.Waiting > 0 {
		log.WithFields(map[string]interface{}{
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"waiting":   result.Waiting,
		}).Info("Push cycle finished")
	}
	e.notifyStatus(ctx)
	observability.SetSuccess(span)
	return result, nil
}

// uploadPhoto processes one photo entry
func (e *SyncEngine) uploadPhoto(ctx context.Context, entry *models.SyncQueueEntry) uploadOutcome {
	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "uploadPhoto")
	defer span.End()
	span.SetAttributes(observability.EntryID(entry.ID), observability.SessionKey(entry.SessionKey))

	var payload models.PhotoUploadPayload
	if err := entry.DecodePayload(&payload); err != nil {
		e.beginAndFail(ctx, entry, backoff.Permanent(fmt.Errorf("decode photo payload: %w", err)))
		return outcomeFailed
	}

	if err := e.deps.Queue.Begin(ctx, entry); err != nil {
		if errors.Is(err, models.ErrEntryClaimed) {
			e.logEntry(ctx, entry).Debug("Photo entry claimed by another worker")
			return outcomeSkipped
		}
		observability.RecordError(span, err)
		e.logEntry(ctx, entry).WithError(err).Error("Failed to start photo upload")
		return outcomeFailed
	}

	// A photo already confirmed in the session is never uploaded twice
	if session, err := e.deps.Store.Get(ctx, entry.SessionKey); err == nil && session != nil {
		if photo, _, ok := session.FindPhoto(payload.PhotoID); ok && photo.IsUploaded() {
			return e.completePhoto(ctx, entry, &payload, &models.RemotePhoto{RemotePath: photo.RemotePath, URL: photo.URL}, 0)
		}
	}

	e.mergePhoto(ctx, entry, payload.PhotoID, models.PhotoUploading, nil)

	data, err := e.deps.Photos.Read(payload.URI)
	if err == nil && !e.deps.Hasher.Matches(data, payload.Checksum) {
		err = fmt.Errorf("%w: %s", models.ErrPhotoCorrupt, payload.URI)
	}
	if err == nil {
		data, err = e.deps.Images.PrepareForUpload(data, payload.URI)
	}
	if err != nil {
		observability.RecordError(span, err)
		e.fail(ctx, entry, err)
		e.mergePhoto(ctx, entry, payload.PhotoID, models.PhotoFailed, nil)
		return outcomeFailed
	}

	uploaded, err := backoff.Retry(ctx, func() (*models.RemotePhoto, error) {
		res, err := e.deps.Remote.UploadPhoto(ctx, data, payload.Folder)
		return res, retryable(err)
	}, e.retryOptions(ctx, entry)...)
	if err != nil {
		observability.RecordError(span, err)
		e.fail(ctx, entry, err)
		e.mergePhoto(ctx, entry, payload.PhotoID, models.PhotoFailed, nil)
		return outcomeFailed
	}

	observability.SetSuccess(span)
	return e.completePhoto(ctx, entry, &payload, uploaded, int64(len(data)))
}

func (e *SyncEngine) completePhoto(ctx context.Context, entry *models.SyncQueueEntry, payload *models.PhotoUploadPayload, uploaded *models.RemotePhoto, size int64) uploadOutcome {
	if err := e.deps.Queue.Complete(ctx, entry, uploaded.URL); err != nil {
		e.logEntry(ctx, entry).WithError(err).Error("Failed to mark photo entry done")
		return outcomeFailed
	}
	e.mergePhoto(ctx, entry, payload.PhotoID, models.PhotoDone, uploaded)

	if size > 0 {
		e.deps.Metrics.RecordPhotoUploaded(ctx, size)
	}
	e.deps.Metrics.RecordEntryDone(ctx, string(entry.EntityType))
	e.logEntry(ctx, entry).WithField("remote_path", uploaded.RemotePath).Debug("Photo uploaded")
	e.notifyEntry(entry)
	return outcomeDone
}

func (e *SyncEngine) mergePhoto(ctx context.Context, entry *models.SyncQueueEntry, photoID string, status models.PhotoStatus, uploaded *models.RemotePhoto) {
	if err := e.deps.Sessions.MergePhotoResult(ctx, entry.SessionKey, photoID, status, uploaded); err != nil {
		e.logEntry(ctx, entry).WithField("photo_id", photoID).WithError(err).Warn("Failed to merge photo status into session")
	}
}

type uploadOutcome int

const (
	outcomeDone uploadOutcome = iota
	outcomeFailed
	outcomeWaiting
	// another worker claimed the entry first
	outcomeSkipped
)

// uploadMaintenance sends a finalized response once every photo it
// references is uploaded
func (e *SyncEngine) uploadMaintenance(ctx context.Context, entry *models.SyncQueueEntry) uploadOutcome {
	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "uploadMaintenance")
	defer span.End()
	span.SetAttributes(observability.EntryID(entry.ID), observability.SessionKey(entry.SessionKey))

	var payload models.MaintenanceResponsePayload
	if err := entry.DecodePayload(&payload); err != nil {
		e.beginAndFail(ctx, entry, backoff.Permanent(fmt.Errorf("decode maintenance payload: %w", err)))
		return outcomeFailed
	}

	resolved, waiting, err := e.resolvePhotos(ctx, entry, &payload)
	if waiting {
		return outcomeWaiting
	}
	if err != nil {
		observability.RecordError(span, err)
		e.beginAndFail(ctx, entry, err)
		return outcomeFailed
	}

	if err := e.deps.Queue.Begin(ctx, entry); err != nil {
		if errors.Is(err, models.ErrEntryClaimed) {
			e.logEntry(ctx, entry).Debug("Maintenance entry claimed by another worker")
			return outcomeSkipped
		}
		observability.RecordError(span, err)
		e.logEntry(ctx, entry).WithError(err).Error("Failed to start maintenance upload")
		return outcomeFailed
	}

	remoteID, err := backoff.Retry(ctx, func() (string, error) {
		id, err := e.deps.Remote.InsertOrUpdateMaintenanceResponse(ctx, resolved)
		return id, retryable(err)
	}, e.retryOptions(ctx, entry)...)
	if err != nil {
		observability.RecordError(span, err)
		e.fail(ctx, entry, err)
		return outcomeFailed
	}

	if err := e.deps.Queue.Complete(ctx, entry, remoteID); err != nil {
		e.logEntry(ctx, entry).WithError(err).Error("Failed to mark maintenance entry done")
		return outcomeFailed
	}
	e.deps.Metrics.RecordEntryDone(ctx, string(entry.EntityType))
	e.acknowledge(ctx, entry, resolved, remoteID)
	observability.SetSuccess(span)
	return outcomeDone
}

// resolvePhotos copies payload with the remote URL of every referenced
// photo filled in. waiting is true while a referenced photo is not done yet.
func (e *SyncEngine) resolvePhotos(ctx context.Context, entry *models.SyncQueueEntry, payload *models.MaintenanceResponsePayload) (*models.MaintenanceResponsePayload, bool, error) {
	siblings, err := e.deps.Queue.ListBySession(ctx, entry.SessionKey)
	if err != nil {
		return nil, false, err
	}
	photoEntries := make(map[string]*models.SyncQueueEntry)
	for _, s := range siblings {
		if s.EntityType == models.EntityPhoto {
			photoEntries[s.LocalID] = s
		}
	}

	session, _ := e.deps.Store.Get(ctx, entry.SessionKey)

	resolve := func(photos []models.PhotoItem) ([]models.PhotoItem, bool, error) {
		out := make([]models.PhotoItem, 0, len(photos))
		for _, photo := range photos {
			if pe, ok := photoEntries[photo.ID]; ok {
				if pe.Status != models.SyncDone {
					return nil, true, nil
				}
				photo.URL = pe.RemoteID
			}
			if session != nil {
				if live, _, ok := session.FindPhoto(photo.ID); ok && live.IsUploaded() {
					photo.URL = live.URL
					photo.RemotePath = live.RemotePath
				}
			}
			if photo.URL == "" {
				return nil, false, fmt.Errorf("%w: %s has no queued upload", models.ErrPhotoFileMissing, photo.ID)
			}
			photo.Status = models.PhotoDone
			out = append(out, photo)
		}
		return out, false, nil
	}

	resolved := *payload
	var waiting bool
	if resolved.PrePhotos, waiting, err = resolve(payload.PrePhotos); waiting || err != nil {
		return nil, waiting, err
	}
	if resolved.PostPhotos, waiting, err = resolve(payload.PostPhotos); waiting || err != nil {
		return nil, waiting, err
	}

	urls := make(map[string]string)
	for _, p := range append(append([]models.PhotoItem(nil), resolved.PrePhotos...), resolved.PostPhotos...) {
		urls[p.ID] = p.URL
	}
	resolved.ItemObservations = make(map[string]models.ItemObservation, len(payload.ItemObservations))
	for itemID, obs := range payload.ItemObservations {
		if url, ok := urls[obs.PhotoURI]; ok {
			obs.PhotoURI = url
		}
		resolved.ItemObservations[itemID] = obs
	}
	return &resolved, false, nil
}

// acknowledge finishes a session whose response the remote store accepted
func (e *SyncEngine) acknowledge(ctx context.Context, entry *models.SyncQueueEntry, payload *models.MaintenanceResponsePayload, remoteID string) {
	log := e.logEntry(ctx, entry).WithField("remote_id", remoteID)

	if err := e.deps.Sessions.MarkUploaded(ctx, entry.SessionKey); err != nil {
		log.WithError(err).Error("Failed to mark session uploaded")
		return
	}

	status := models.RecordCompleted
	for _, ok := range payload.Checklist {
		if !ok {
			status = models.RecordFlagged
			break
		}
	}
	record := &models.MaintenanceRecord{
		ID:            remoteID,
		PropertyID:    payload.PropertyID,
		EquipmentID:   payload.EquipmentID,
		MaintenanceID: payload.MaintenanceID,
		LocalRef:      payload.LocalRef,
		Status:        status,
		CompletedAt:   payload.FinishedAt,
	}
	if err := e.deps.Records.Upsert(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to store maintenance history record")
	}

	if err := e.deps.Sessions.Remove(ctx, entry.SessionKey); err != nil {
		log.WithError(err).Error("Failed to remove uploaded session")
		return
	}
	if _, err := e.deps.Queue.PurgeDone(ctx, entry.SessionKey); err != nil {
		log.WithError(err).Warn("Failed to purge done entries")
	}

	log.Info("Maintenance session synced")
	e.notify(WSTypeSessionSynced, SessionSyncedPayload{SessionKey: entry.SessionKey, RemoteID: remoteID})
	e.alert(ctx, func(ctx context.Context, n Notifier) error {
		return n.SessionSynced(ctx, entry.SessionKey, remoteID)
	})
}

// beginAndFail records a failure for an entry that was never started
func (e *SyncEngine) beginAndFail(ctx context.Context, entry *models.SyncQueueEntry, err error) {
	if beginErr := e.deps.Queue.Begin(ctx, entry); beginErr != nil {
		e.logEntry(ctx, entry).WithError(beginErr).Error("Failed to start entry")
		return
	}
	e.fail(ctx, entry, err)
}

// fail classifies err and moves the entry to error or fatal_error
func (e *SyncEngine) fail(ctx context.Context, entry *models.SyncQueueEntry, err error) {
	kind := ClassifyFailure(err)
	next := e.now().Add(e.retryDelay(entry.Attempts + 1))

	if qerr := e.deps.Queue.Fail(ctx, entry, err, kind, next, e.cfg.MaxAttempts); qerr != nil {
		e.logEntry(ctx, entry).WithError(qerr).Error("Failed to record sync failure")
		return
	}
	e.setLastError(err)
	e.deps.Metrics.RecordEntryFailed(ctx, string(entry.EntityType), string(kind))

	log := e.logEntry(ctx, entry).WithFields(map[string]interface{}{
		"attempts": entry.Attempts,
		"failure":  kind,
	}).WithError(err)
	if entry.Status == models.SyncFatalError {
		log.Error("Sync entry failed permanently, waiting for user retry")
		e.alert(ctx, func(ctx context.Context, n Notifier) error {
			return n.EntryFailed(ctx, entry)
		})
	} else {
		log.WithField("next_attempt_at", entry.NextAttemptAt.Format(time.RFC3339)).Warn("Sync entry failed, will retry")
	}
	e.notifyEntry(entry)
}

func (e *SyncEngine) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if d := e.cfg.InitialBackoff(); d > 0 {
		b.InitialInterval = d
	}
	if d := e.cfg.MaxBackoff(); d > 0 {
		b.MaxInterval = d
	}
	return b
}

// retryDelay is the wait before the given attempt of an entry
func (e *SyncEngine) retryDelay(attempt int) time.Duration {
	b := e.newBackOff()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (e *SyncEngine) retryOptions(ctx context.Context, entry *models.SyncQueueEntry) []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(e.cfg.UploadTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.logEntry(ctx, entry).WithError(err).WithField("wait", wait.String()).Debug("Upload attempt failed, retrying")
		}),
	}
}

func (e *SyncEngine) pull(ctx context.Context) (*PullResult, error) {
	e.pulling.Store(true)
	defer e.pulling.Store(false)

	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "PullData")
	defer span.End()
	start := e.now()

	properties, err := e.trackedProperties(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := &PullResult{}
	var errs []error
	for _, propertyID := range properties {
		equipment, records, err := e.pullProperty(ctx, propertyID)
		if err != nil {
			observability.WithContext(ctx).WithField("property_id", propertyID).WithError(err).Warn("Pull failed for property")
			result.Failed = append(result.Failed, propertyID)
			errs = append(errs, fmt.Errorf("property %s: %w", propertyID, err))
			continue
		}
		result.Properties++
		result.Equipment += equipment
		result.Records += records
	}
	if result.Equipment > 0 && e.deps.Sessions != nil {
		e.deps.Sessions.InvalidateChecklists()
	}

	finished := e.now().UTC()
	e.mu.Lock()
	if len(errs) > 0 {
		e.lastError = errs[len(errs)-1].Error()
	}
	if result.Properties > 0 || len(properties) == 0 {
		e.lastPullAt = &finished
	}
	e.mu.Unlock()

	e.deps.Metrics.RecordPull(ctx, finished.Sub(start), result.Properties)
	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"properties": result.Properties,
		"equipment":  result.Equipment,
		"records":    result.Records,
		"failed":     len(result.Failed),
	}).Info("Pull cycle finished")
	e.notify(WSTypePullComplete, result)

	if len(properties) > 0 && result.Properties == 0 {
		err := errors.Join(errs...)
		observability.RecordError(span, err)
		return result, err
	}
	observability.SetSuccess(span)
	return result, nil
}

// trackedProperties lists configured properties plus those of local sessions
func (e *SyncEngine) trackedProperties(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var properties []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			properties = append(properties, id)
		}
	}

	for _, id := range e.cfg.PropertyIDs {
		add(id)
	}
	sessions, err := e.deps.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		add(s.PropertyID)
	}
	return properties, nil
}

// pullProperty mirrors one property. Remote records overwrite local ones;
// sessions are never touched.
func (e *SyncEngine) pullProperty(ctx context.Context, propertyID string) (int, int, error) {
	started := e.now().UTC()

	state, err := e.deps.PullState.Get(ctx, propertyID)
	if err != nil {
		return 0, 0, err
	}
	var since *time.Time
	if state != nil {
		since = state.LastPulledAt
	}

	equipment, err := e.deps.Remote.FetchEquipmentDelta(ctx, propertyID, since)
	if err != nil {
		return 0, 0, err
	}
	for _, eq := range equipment {
		if eq.PropertyID == "" {
			eq.PropertyID = propertyID
		}
		if err := e.deps.Equipment.Upsert(ctx, eq); err != nil {
			return 0, 0, fmt.Errorf("store equipment %s: %w", eq.ID, err)
		}
	}

	records, err := e.deps.Remote.FetchMaintenanceRecords(ctx, propertyID)
	if err != nil {
		return len(equipment), 0, err
	}
	if err := e.deps.Records.ReplaceForProperty(ctx, propertyID, records); err != nil {
		return len(equipment), 0, err
	}

	if err := e.deps.PullState.MarkPulled(ctx, propertyID, started); err != nil {
		return len(equipment), len(records), err
	}
	return len(equipment), len(records), nil
}

func (e *SyncEngine) setLastError(err error) {
	e.mu.Lock()
	e.lastError = err.Error()
	e.mu.Unlock()
}

func (e *SyncEngine) logEntry(ctx context.Context, entry *models.SyncQueueEntry) *observability.Logger {
	return observability.WithContext(ctx).WithFields(map[string]interface{}{
		"entry_id":    entry.ID,
		"entity_type": entry.EntityType,
		"session_key": entry.SessionKey,
	})
}

func (e *SyncEngine) notify(msgType string, payload interface{}) {
	if e.deps.Hub == nil {
		return
	}
	e.deps.Hub.BroadcastToTopic(TopicSync, WSMessage{Type: msgType, Payload: payload})
}

// alert forwards an outcome to the device notifier. Delivery is best effort.
func (e *SyncEngine) alert(ctx context.Context, send func(context.Context, Notifier) error) {
	if e.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := send(ctx, e.deps.Notifier); err != nil {
		observability.WithContext(ctx).WithError(err).Warn("Failed to send device notification")
	}
}

func (e *SyncEngine) notifyEntry(entry *models.SyncQueueEntry) {
	e.notify(WSTypeEntryUpdated, EntryUpdatedPayload{
		EntryID:    entry.ID,
		EntityType: string(entry.EntityType),
		SessionKey: entry.SessionKey,
		Status:     string(entry.Status),
		Attempts:   entry.Attempts,
		LastError:  entry.LastError,
	})
}

func (e *SyncEngine) notifyStatus(ctx context.Context) {
	if e.deps.Hub == nil {
		return
	}
	status, err := e.Status(ctx)
	if err != nil {
		return
	}
	e.notify(WSTypeSyncStatus, status)
}
