package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps domain errors to HTTP statuses. Validation
// failures carry their issues so the UI can point at the offending items.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: verr.Error(), Issues: verr.Issues})
		return
	}

	switch {
	case errors.Is(err, models.ErrEquipmentNotFound),
		errors.Is(err, models.ErrUnknownItem),
		errors.Is(err, models.ErrPhotoNotFound),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrQueueEntryNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrSessionFinalized),
		errors.Is(err, models.ErrSessionUploaded),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrEntryClaimed),
		errors.Is(err, models.ErrSweepRunning):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrEngineStopped):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrFileTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrEmptyEquipmentID),
		errors.Is(err, models.ErrInvalidSessionKey),
		errors.Is(err, models.ErrInvalidPhotoSection),
		errors.Is(err, models.ErrEmptyPhotoURI),
		errors.Is(err, models.ErrInvalidExtension),
		errors.Is(err, models.ErrInvalidStep):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		observability.WithContext(r.Context()).
			WithField("path", r.URL.Path).
			WithError(err).
			Error("Request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
