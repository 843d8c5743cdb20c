package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/services"
)

// syncRequestTimeout bounds how long a manual push or pull request waits.
// The cycle itself keeps running after the request gives up.
const syncRequestTimeout = 2 * time.Minute

// SyncHandler handles sync endpoints
type SyncHandler struct {
	engine    *services.SyncEngine
	queue     *services.SyncQueue
	scheduler *services.SyncScheduler
}

// NewSyncHandler creates a new SyncHandler. scheduler may be nil when the
// background loop is disabled.
func NewSyncHandler(engine *services.SyncEngine, queue *services.SyncQueue, scheduler *services.SyncScheduler) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		queue:     queue,
		scheduler: scheduler,
	}
}

// Routes mounts the sync endpoints
func (h *SyncHandler) Routes(r chi.Router) {
	r.Post("/push", h.Push)
	r.Post("/pull", h.Pull)
	r.Get("/status", h.Status)
	r.Get("/scheduler", h.SchedulerStatus)
	r.Get("/queue", h.ListQueue)
	r.Post("/queue/{id}/retry", h.Retry)
}

// Push uploads every eligible queue entry now
// @Summary Push queued work
// @Tags sync
// @Produce json
// @Success 200 {object} services.PushResult
// @Failure 504 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/push [post]
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), syncRequestTimeout)
	defer cancel()

	res, err := h.engine.PushData(ctx)
	if err != nil {
		h.respondSyncError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Pull refreshes the equipment mirror now
// @Summary Pull equipment
// @Tags sync
// @Produce json
// @Success 200 {object} services.PullResult
// @Failure 502 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/pull [post]
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), syncRequestTimeout)
	defer cancel()

	res, err := h.engine.PullData(ctx)
	if err != nil {
		h.respondSyncError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *SyncHandler) respondSyncError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == context.DeadlineExceeded:
		respondError(w, http.StatusGatewayTimeout, "Sync is still running")
	case err == context.Canceled:
		respondError(w, http.StatusRequestTimeout, "Request cancelled")
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

// Status returns the sync badge state
// @Summary Get sync status
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusResponse
// @Security ApiKeyAuth
// @Router /api/sync/status [get]
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SchedulerStatus returns the state of the background loop
// @Summary Get scheduler status
// @Tags sync
// @Produce json
// @Success 200 {object} services.SchedulerStatus
// @Security ApiKeyAuth
// @Router /api/sync/scheduler [get]
func (h *SyncHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondJSON(w, http.StatusOK, services.SchedulerStatus{})
		return
	}
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

// ListQueue lists queue entries, optionally filtered by status
// @Summary List sync queue
// @Tags sync
// @Produce json
// @Param status query string false "pending, syncing, done, error or fatal_error"
// @Success 200 {object} models.SyncQueueListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/queue [get]
func (h *SyncHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := models.SyncStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	entries, err := h.queue.List(r.Context(), status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.SyncQueueListResponse{Entries: entries, TotalCount: len(entries)})
}

// Retry re-arms an entry that failed permanently
// @Summary Retry failed entry
// @Tags sync
// @Produce json
// @Param id path string true "Queue entry ID"
// @Success 200 {object} models.SyncQueueEntry
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/queue/{id}/retry [post]
func (h *SyncHandler) Retry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.scheduler != nil {
		h.scheduler.RunNow(r.Context())
	}
	respondJSON(w, http.StatusOK, entry)
}
