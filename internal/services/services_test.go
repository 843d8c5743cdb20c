package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/repository"
)

func floatPtr(v float64) *float64 { return &v }

// fakeRemote records calls and lets a test decide each outcome
type fakeRemote struct {
	mu sync.Mutex

	uploads      []string
	upserts      []*models.MaintenanceResponsePayload
	equipmentFor map[string][]*models.Equipment
	recordsFor   map[string][]*models.MaintenanceRecord
	sinceSeen    map[string]*time.Time

	uploadErr func(call int, folder string) error
	upsertErr func(call int) error
	pullErr   func(propertyID string) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		equipmentFor: make(map[string][]*models.Equipment),
		recordsFor:   make(map[string][]*models.MaintenanceRecord),
		sinceSeen:    make(map[string]*time.Time),
	}
}

func (f *fakeRemote) UploadPhoto(ctx context.Context, data []byte, folder string) (*models.RemotePhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.uploads)
	f.uploads = append(f.uploads, folder)
	if f.uploadErr != nil {
		if err := f.uploadErr(call, folder); err != nil {
			return nil, err
		}
	}
	path := fmt.Sprintf("%s/%d.jpg", folder, call)
	return &models.RemotePhoto{RemotePath: path, URL: "https://cdn.test/" + path}, nil
}

func (f *fakeRemote) InsertOrUpdateMaintenanceResponse(ctx context.Context, payload *models.MaintenanceResponsePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.upserts)
	f.upserts = append(f.upserts, payload)
	if f.upsertErr != nil {
		if err := f.upsertErr(call); err != nil {
			return "", err
		}
	}
	return "remote-" + payload.LocalRef, nil
}

func (f *fakeRemote) FetchEquipmentDelta(ctx context.Context, propertyID string, since *time.Time) ([]*models.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen[propertyID] = since
	if f.pullErr != nil {
		if err := f.pullErr(propertyID); err != nil {
			return nil, err
		}
	}
	return f.equipmentFor[propertyID], nil
}

func (f *fakeRemote) FetchMaintenanceRecords(ctx context.Context, propertyID string) ([]*models.MaintenanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordsFor[propertyID], nil
}

func (f *fakeRemote) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

type testHarness struct {
	remote    *fakeRemote
	store     *LocalPhotoStore
	queue     *SyncQueue
	sessions  *SessionService
	engine    *SyncEngine
	repo      *repository.SessionRepository
	equipment *repository.EquipmentRepository
	records   *repository.MaintenanceRecordRepository
	clock     *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewLocalPhotoStore(t.TempDir(), nil, 5)
	require.NoError(t, err)

	rules, err := LoadPhotoRules("")
	require.NoError(t, err)

	sessionRepo := repository.NewSessionRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	recordRepo := repository.NewMaintenanceRecordRepository(db)
	queue := NewSyncQueue(repository.NewSyncQueueRepository(db))
	exifService := NewEXIFService()
	hasher := NewHashService()

	sessions := NewSessionService(sessionRepo, equipmentRepo, queue,
		NewChecklistValidator(10, 10), NewPhotoCaptureManager(rules), store, hasher, exifService)

	remote := newFakeRemote()
	engine := NewSyncEngine(SyncEngineDeps{
		Remote:    remote,
		Sessions:  sessions,
		Store:     sessionRepo,
		Queue:     queue,
		Equipment: equipmentRepo,
		Records:   recordRepo,
		PullState: repository.NewPullStateRepository(db),
		Photos:    store,
		Images:    NewImageService(exifService, 0, 85),
		Hasher:    hasher,
	}, config.Sync{
		MaxAttempts:       3,
		UploadTries:       1,
		InitialBackoffMs:  1000,
		MaxBackoffSeconds: 60,
	})
	clock := &testClock{now: time.Now().UTC()}
	engine.now = clock.Now

	return &testHarness{
		remote:    remote,
		store:     store,
		queue:     queue,
		sessions:  sessions,
		engine:    engine,
		repo:      sessionRepo,
		equipment: equipmentRepo,
		records:   recordRepo,
		clock:     clock,
	}
}

// seedPanel stores a distribution panel with one ITG circuit carrying a differential
func (h *testHarness) seedPanel(t *testing.T, id string) *models.Equipment {
	t.Helper()
	eq := &models.Equipment{
		ID:         id,
		PropertyID: "prop-1",
		Name:       "Tablero " + id,
		Type:       models.EquipmentElectricalPanel,
		Subtype:    models.SubtypeDistribution,
		Circuits: []models.Circuit{
			{ID: "itg-1", Label: "ITG", NominalVoltage: 220, RatedAmperage: 32, HasDifferential: true},
		},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, h.equipment.Upsert(context.Background(), eq))
	return eq
}

func (h *testHarness) capture(t *testing.T, key string, section models.PhotoSection, itemID string) *models.PhotoItem {
	t.Helper()
	photo, err := h.sessions.CapturePhoto(context.Background(), key, section, itemID, "IMG.jpg",
		bytes.NewReader([]byte("jpeg bytes "+time.Now().String())))
	require.NoError(t, err)
	return photo
}

// completeSession fills every step of a panel session with passing answers
// and finalizes it. It captures one pre photo and two post photos.
func (h *testHarness) completeSession(t *testing.T, key string) *models.SyncQueueEntry {
	t.Helper()
	h.fillSession(t, key)

	entry, err := h.sessions.Finalize(context.Background(), key)
	require.NoError(t, err)
	return entry
}

// fillSession answers every step of a panel session without finalizing it
func (h *testHarness) fillSession(t *testing.T, key string) {
	t.Helper()
	ctx := context.Background()

	h.capture(t, key, models.SectionPreVisual, "")

	_, err := h.sessions.EnterMeasurement(ctx, key, "itg-1", models.FieldVoltage, floatPtr(221))
	require.NoError(t, err)
	_, err = h.sessions.EnterMeasurement(ctx, key, "itg-1", models.FieldAmperage, floatPtr(12))
	require.NoError(t, err)
	_, err = h.sessions.ToggleStatus(ctx, key, "itg-1", true)
	require.NoError(t, err)
	_, err = h.sessions.ToggleStatus(ctx, key, "itg-1"+models.DifferentialSuffix, true)
	require.NoError(t, err)

	for _, q := range []string{"panel_labeled", "directory_present", "door_closes", "no_exposed_parts", "grounding_connected", "clear_access"} {
		_, err = h.sessions.SetProtocolAnswer(ctx, key, q, true)
		require.NoError(t, err)
	}

	h.capture(t, key, models.SectionPostVisual, "")
	h.capture(t, key, models.SectionPostVisual, "")
}
