package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/repository"
)

// EquipmentHandler serves the local equipment mirror
type EquipmentHandler struct {
	equipment repository.EquipmentStore
	records   repository.MaintenanceRecordStore
}

// NewEquipmentHandler creates a new EquipmentHandler
func NewEquipmentHandler(equipment repository.EquipmentStore, records repository.MaintenanceRecordStore) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipment, records: records}
}

// Routes mounts the equipment endpoints
func (h *EquipmentHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/checklist", h.Checklist)
	r.Get("/{id}/history", h.History)
}

// List queries the mirror for a property
// @Summary List equipment
// @Tags equipment
// @Produce json
// @Param propertyId query string true "Property ID"
// @Param type query string false "Equipment type"
// @Param subtype query string false "Panel subtype"
// @Param search query string false "Name or location contains"
// @Success 200 {object} models.EquipmentListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/equipment [get]
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	propertyID := q.Get("propertyId")
	if propertyID == "" {
		respondError(w, http.StatusBadRequest, "propertyId is required")
		return
	}

	filter := models.EquipmentFilter{
		Type:    models.EquipmentType(q.Get("type")),
		Subtype: q.Get("subtype"),
		Search:  q.Get("search"),
	}
	equipment, err := h.equipment.Query(r.Context(), propertyID, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.EquipmentListResponse{Equipment: equipment, TotalCount: len(equipment)})
}

// Get returns one mirrored equipment record
// @Summary Get equipment
// @Tags equipment
// @Produce json
// @Param id path string true "Equipment ID"
// @Success 200 {object} models.Equipment
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/equipment/{id} [get]
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, eq)
}

// Checklist returns the inspection template derived from the equipment
// @Summary Get checklist template
// @Tags equipment
// @Produce json
// @Param id path string true "Equipment ID"
// @Success 200 {object} models.Checklist
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/equipment/{id}/checklist [get]
func (h *EquipmentHandler) Checklist(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.BuildChecklist(eq))
}

// History lists finalized maintenances of the equipment
// @Summary Get maintenance history
// @Tags equipment
// @Produce json
// @Param id path string true "Equipment ID"
// @Success 200 {array} models.MaintenanceRecord
// @Security ApiKeyAuth
// @Router /api/equipment/{id}/history [get]
func (h *EquipmentHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListByEquipment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *EquipmentHandler) load(w http.ResponseWriter, r *http.Request) (*models.Equipment, bool) {
	eq, err := h.equipment.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	if eq == nil {
		respondServiceError(w, r, models.ErrEquipmentNotFound)
		return nil, false
	}
	return eq, true
}
