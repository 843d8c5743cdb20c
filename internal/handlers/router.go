package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fieldsync/inspector/internal/config"
	custommw "github.com/fieldsync/inspector/internal/middleware"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/repository"
	"github.com/fieldsync/inspector/internal/services"
)

// RouterDeps lists what the HTTP API serves from
type RouterDeps struct {
	Sessions  *services.SessionService
	Engine    *services.SyncEngine
	Queue     *services.SyncQueue
	Scheduler *services.SyncScheduler
	Equipment repository.EquipmentStore
	Records   repository.MaintenanceRecordStore
	Hub       *services.WebSocketHub
	Security  config.Security

	ServiceName string
	// HTTPMetrics is optional
	HTTPMetrics *observability.HTTPMetrics
}

// NewRouter builds the agent's HTTP API
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if deps.ServiceName != "" {
		r.Use(observability.TracingMiddleware(deps.ServiceName))
	}
	if deps.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(custommw.APIKeyAuth(deps.Security.APIKey, deps.Security.APIKeyHash, deps.Security.APIKeyHeader))

	health := NewHealthHandler()
	r.Get("/health", health.HealthCheck)
	r.Get("/api/health", health.HealthCheck)
	r.Get("/version", VersionHandler)
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	if deps.Hub != nil {
		r.Get("/api/ws", NewWebSocketHandler(deps.Hub).HandleConnection)
	}

	r.Route("/api/sessions", NewSessionHandler(deps.Sessions).Routes)
	r.Route("/api/sync", NewSyncHandler(deps.Engine, deps.Queue, deps.Scheduler).Routes)
	r.Route("/api/equipment", NewEquipmentHandler(deps.Equipment, deps.Records).Routes)

	return r
}
