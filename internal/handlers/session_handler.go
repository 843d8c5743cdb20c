package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/services"
)

// maxCaptureBytes bounds a multipart photo request
const maxCaptureBytes = 64 << 20

// SessionHandler exposes the inspection workflow to the field UI
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Routes mounts the session endpoints
func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Discard)
		r.Get("/validation", h.Validation)
		r.Post("/measurements", h.EnterMeasurement)
		r.Post("/status", h.ToggleStatus)
		r.Post("/observations", h.SetObservation)
		r.Post("/protocol", h.SetProtocolAnswer)
		r.Post("/instruments", h.SetInstruments)
		r.Post("/photos", h.CapturePhoto)
		r.Delete("/photos/*", h.RemovePhoto)
		r.Post("/advance", h.Advance)
		r.Post("/back", h.GoBack)
		r.Post("/finalize", h.Finalize)
	})
}

// List returns every resumable session
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Success 200 {array} models.SessionSummary
// @Security ApiKeyAuth
// @Router /api/sessions [get]
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Get opens or resumes a session
// @Summary Open session
// @Description Returns the stored session for the key, creating an empty one on first open
// @Tags sessions
// @Produce json
// @Param key path string true "Session key (equipmentId:maintenanceId|adhoc)"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondSession(w, r)
}

// Validation reports what blocks the current step
// @Summary Validate current step
// @Tags sessions
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/validation [get]
func (h *SessionHandler) Validation(w http.ResponseWriter, r *http.Request) {
	h.respondSession(w, r)
}

// Discard throws away a session and its unsent work
// @Summary Discard session
// @Tags sessions
// @Param key path string true "Session key"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key} [delete]
func (h *SessionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(r.Context(), chi.URLParam(r, "key")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnterMeasurement records a voltage or amperage reading
// @Summary Enter measurement
// @Tags sessions
// @Accept json
// @Produce json
// @Param key path string true "Session key"
// @Param request body models.MeasurementRequest true "Reading"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/measurements [post]
func (h *SessionHandler) EnterMeasurement(w http.ResponseWriter, r *http.Request) {
	var req models.MeasurementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Field != models.FieldVoltage && req.Field != models.FieldAmperage {
		respondError(w, http.StatusBadRequest, "field must be voltage or amperage")
		return
	}
	h.mutated(w, r)(h.sessions.EnterMeasurement(r.Context(), chi.URLParam(r, "key"), req.ItemID, req.Field, req.Value))
}

// ToggleStatus marks an item OK or flagged
// @Summary Toggle item status
// @Tags sessions
// @Accept json
// @Produce json
// @Param key path string true "Session key"
// @Param request body models.StatusToggleRequest true "Status"
// @Success 200 {object} models.SessionResponse
// @Failure 422 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/status [post]
func (h *SessionHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r)(h.sessions.ToggleStatus(r.Context(), chi.URLParam(r, "key"), req.ItemID, req.OK))
}

// SetObservation sets the note of a flagged item
// @Summary Set observation
// @Tags sessions
// @Accept json
// @Produce json
// @Param key path string true "Session key"
// @Param request body models.ObservationRequest true "Observation"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/observations [post]
func (h *SessionHandler) SetObservation(w http.ResponseWriter, r *http.Request) {
	var req models.ObservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r)(h.sessions.SetObservation(r.Context(), chi.URLParam(r, "key"), req.ItemID, req.Note, req.PhotoURI))
}

// SetProtocolAnswer answers a protocol question
// @Summary Answer protocol question
// @Tags sessions
// @Accept json
// @Produce json
// @Param key path string true "Session key"
// @Param request body models.ProtocolAnswerRequest true "Answer"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/protocol [post]
func (h *SessionHandler) SetProtocolAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.ProtocolAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r)(h.sessions.SetProtocolAnswer(r.Context(), chi.URLParam(r, "key"), req.Key, req.Answer))
}

// SetInstruments replaces the selected instruments
// @Summary Set instruments
// @Tags sessions
// @Accept json
// @Produce json
// @Param key path string true "Session key"
// @Param request body models.InstrumentsRequest true "Instruments"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/instruments [post]
func (h *SessionHandler) SetInstruments(w http.ResponseWriter, r *http.Request) {
	var req models.InstrumentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutated(w, r)(h.sessions.SetInstruments(r.Context(), chi.URLParam(r, "key"), req.Instruments))
}

// CapturePhoto stores a captured photo in a section
// @Summary Capture photo
// @Description Multipart upload with fields file, section (e.g. pre.visual) and optional itemId
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param key path string true "Session key"
// @Param file formData file true "Photo file"
// @Param section formData string true "Photo section"
// @Param itemId formData string false "Checklist item the photo documents"
// @Success 201 {object} models.PhotoUploadResult
// @Failure 422 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/photos [post]
func (h *SessionHandler) CapturePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	section, err := models.ParsePhotoSection(r.FormValue("section"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	photo, err := h.sessions.CapturePhoto(r.Context(), chi.URLParam(r, "key"), section, r.FormValue("itemId"), header.Filename, file)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.PhotoUploadResult{Photo: *photo, Section: section.String()})
}

// RemovePhoto detaches a photo from a section
// @Summary Remove photo
// @Tags sessions
// @Produce json
// @Param key path string true "Session key"
// @Param uri path string true "Photo URI"
// @Param section query string true "Photo section"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/photos/{uri} [delete]
func (h *SessionHandler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	section, err := models.ParsePhotoSection(r.URL.Query().Get("section"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.mutated(w, r)(h.sessions.RemovePhoto(r.Context(), chi.URLParam(r, "key"), section, chi.URLParam(r, "*")))
}

// Advance moves to the next step
// @Summary Advance step
// @Tags sessions
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} models.SessionResponse
// @Failure 422 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/advance [post]
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r)(h.sessions.Advance(r.Context(), chi.URLParam(r, "key")))
}

// GoBack returns to the previous step
// @Summary Previous step
// @Tags sessions
// @Produce json
// @Param key path string true "Session key"
// @Success 200 {object} models.SessionResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/back [post]
func (h *SessionHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	h.mutated(w, r)(h.sessions.GoBack(r.Context(), chi.URLParam(r, "key")))
}

// Finalize validates the whole session and queues it for upload
// @Summary Finalize session
// @Tags sessions
// @Produce json
// @Param key path string true "Session key"
// @Success 202 {object} models.SyncQueueEntry
// @Failure 422 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sessions/{key}/finalize [post]
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	entry, err := h.sessions.Finalize(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, entry)
}

// mutated returns a sink for a mutator result that replies with the
// session and its current blocking issues
func (h *SessionHandler) mutated(w http.ResponseWriter, r *http.Request) func(*models.MaintenanceSession, error) {
	return func(_ *models.MaintenanceSession, err error) {
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		h.respondSession(w, r)
	}
}

func (h *SessionHandler) respondSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sessions.Validate(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
