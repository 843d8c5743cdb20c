package handlers

import (
	"net/http"
	"time"

	"github.com/fieldsync/inspector/internal/models"
)

// HealthHandler handles health check endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthCheck returns the agent health status
// @Summary Health check
// @Description Returns the current health status of the agent
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Agent is healthy"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
