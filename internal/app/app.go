// Package app assembles the agent's stores, services and remote backend from
// a loaded configuration. Both the HTTP server and inspectctl build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/observability"
	"github.com/fieldsync/inspector/internal/remote"
	"github.com/fieldsync/inspector/internal/repository"
	"github.com/fieldsync/inspector/internal/services"
)

// App holds every long-lived component of the agent
type App struct {
	Config *config.Config
	DB     *sql.DB

	Sessions  *services.SessionService
	Queue     *services.SyncQueue
	Engine    *services.SyncEngine
	Hub       *services.WebSocketHub
	Photos    *services.LocalPhotoStore
	Sweeper   *services.CaptureSweeper
	Equipment *repository.EquipmentRepository
	Records   *repository.MaintenanceRecordRepository

	closers []io.Closer
}

// Options tweaks how New wires the agent
type Options struct {
	// Remote overrides the configured backend, mostly for tests
	Remote services.RemoteAPI
	// WithHub starts a WebSocket hub for status broadcasts
	WithHub bool
}

// New opens the local store and wires the sync pipeline. The caller owns the
// returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := observability.GetLogger()

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, db)

	rules, err := services.LoadPhotoRules(cfg.PhotoRulesPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load photo rules: %w", err)
	}

	photos, err := services.NewLocalPhotoStore(
		cfg.PhotoStorage.BasePath,
		cfg.PhotoStorage.AllowedExtensions,
		cfg.PhotoStorage.MaxFileSizeMB,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
	}

	sessionRepo := repository.NewSessionRepository(db)
	a.Equipment = repository.NewEquipmentRepository(db)
	a.Records = repository.NewMaintenanceRecordRepository(db)
	a.Queue = services.NewSyncQueue(repository.NewSyncQueueRepository(db))
	a.Photos = photos
	a.Sweeper = services.NewCaptureSweeper(sessionRepo, a.Queue, photos, cfg.PhotoStorage.OrphanGrace())

	exifService := services.NewEXIFService()
	hasher := services.NewHashService()

	a.Sessions = services.NewSessionService(
		sessionRepo,
		a.Equipment,
		a.Queue,
		services.NewChecklistValidator(cfg.Checklist.VoltageTolerancePct, cfg.Checklist.AmperageTolerancePct),
		services.NewPhotoCaptureManager(rules),
		photos,
		hasher,
		exifService,
	)

	backend := opts.Remote
	if backend == nil {
		backend, err = a.openRemote(ctx, cfg.Remote)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.WithHub {
		a.Hub = services.NewWebSocketHub()
		go a.Hub.Run()
	}

	var notifier services.Notifier
	if cfg.Remote.FCMTopic != "" {
		pn, err := services.NewPushNotifier(ctx, cfg.Remote.FirebaseProjectID, cfg.Remote.FirebaseCredentialsPath, cfg.Remote.FCMTopic)
		if err != nil {
			logger.Warnf("Device notifications disabled: %v", err)
		} else {
			notifier = pn
		}
	}

	syncMetrics, err := observability.NewSyncMetrics()
	if err != nil {
		logger.Warnf("Sync metrics disabled: %v", err)
		syncMetrics = nil
	}

	a.Engine = services.NewSyncEngine(services.SyncEngineDeps{
		Remote:    backend,
		Sessions:  a.Sessions,
		Store:     sessionRepo,
		Queue:     a.Queue,
		Equipment: a.Equipment,
		Records:   a.Records,
		PullState: repository.NewPullStateRepository(db),
		Photos:    photos,
		Images:    services.NewImageService(exifService, cfg.PhotoStorage.MaxDimension, cfg.PhotoStorage.JPEGQuality),
		Hasher:    hasher,
		Hub:       a.Hub,
		Metrics:   syncMetrics,
		Notifier:  notifier,
	}, cfg.Sync)

	return a, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	logger := observability.GetLogger()
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
		}
		return db, nil
	}

	logger.WithField("path", cfg.DatabasePath).Info("Using SQLite database")
	db, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database: %w", err)
	}
	return db, nil
}

func (a *App) openRemote(ctx context.Context, cfg config.Remote) (services.RemoteAPI, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := remote.NewFirestoreClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to firestore: %w", err)
		}
		a.closers = append(a.closers, client)
		return client, nil
	case config.BackendHTTP, "":
		client, err := remote.NewHTTPClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Backend)
	}
}

// Close stops the hub and releases the remote client and database
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Stop()
	}

	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
