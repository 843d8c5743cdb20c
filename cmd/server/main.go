package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fieldsync/inspector/docs"
	"github.com/fieldsync/inspector/internal/app"
	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/handlers"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/services"
)

// @title Fieldsync Inspector API
// @version 1.0
// @description Local-first maintenance inspection agent
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := observability.NewConfig("fieldsync-agent", handlers.Version)
	telemetry, err := observability.Initialize(ctx, telemetryCfg)
	if err != nil {
		logger.Warnf("Telemetry unavailable: %v", err)
	}

	agent, err := app.New(ctx, cfg, app.Options{WithHub: true})
	if err != nil {
		log.Fatalf("Failed to start agent: %v", err)
	}

	var scheduler *services.SyncScheduler
	if cfg.Sync.Enabled {
		scheduler = services.NewSyncScheduler(agent.Engine, cfg.Sync.Interval())
		scheduler.SetSweeper(agent.Sweeper, 0)
		scheduler.Start(ctx)
	} else {
		// still requeue work a previous run left mid-upload
		if n, err := agent.Queue.RecoverInterrupted(ctx); err != nil {
			logger.WithError(err).Warn("Failed to recover interrupted uploads")
		} else if n > 0 {
			logger.Infof("Requeued %d interrupted uploads", n)
		}
	}

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.Warnf("HTTP metrics disabled: %v", err)
		httpMetrics = nil
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Sessions:    agent.Sessions,
		Engine:      agent.Engine,
		Queue:       agent.Queue,
		Scheduler:   scheduler,
		Equipment:   agent.Equipment,
		Records:     agent.Records,
		Hub:         agent.Hub,
		Security:    cfg.Security,
		ServiceName: telemetryCfg.ServiceName,
		HTTPMetrics: httpMetrics,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // manual push/pull can run for minutes
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Fieldsync agent starting on %s", cfg.ServerAddress)
		logger.Infof("Photo storage path: %s", cfg.PhotoStorage.BasePath)
		logger.Infof("Remote backend: %s", cfg.Remote.Backend)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop waits for a running cycle so in-flight uploads settle
	if scheduler != nil {
		scheduler.Stop()
	}
	// pushes started over HTTP keep running after their caller left
	if err := agent.Engine.Drain(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Sync work still running at shutdown")
	}
	cancel()

	if err := agent.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close agent resources")
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}

	logger.Info("Agent stopped")
}
