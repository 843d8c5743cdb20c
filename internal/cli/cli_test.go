package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/app"
	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
)

type stubRemote struct {
	equipment map[string][]*models.Equipment
}

func (s *stubRemote) UploadPhoto(ctx context.Context, data []byte, folder string) (*models.RemotePhoto, error) {
	return &models.RemotePhoto{RemotePath: folder + "/p.jpg", URL: "https://cdn.test/" + folder + "/p.jpg"}, nil
}

func (s *stubRemote) InsertOrUpdateMaintenanceResponse(ctx context.Context, payload *models.MaintenanceResponsePayload) (string, error) {
	return "remote-" + payload.LocalRef, nil
}

func (s *stubRemote) FetchEquipmentDelta(ctx context.Context, propertyID string, since *time.Time) ([]*models.Equipment, error) {
	return s.equipment[propertyID], nil
}

func (s *stubRemote) FetchMaintenanceRecords(ctx context.Context, propertyID string) ([]*models.MaintenanceRecord, error) {
	return nil, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DatabasePath: filepath.Join(dir, "agent.db"),
		PhotoStorage: config.PhotoStorage{
			BasePath:      filepath.Join(dir, "captures"),
			MaxFileSizeMB: 5,
			JPEGQuality:   85,
		},
		Sync: config.Sync{
			MaxAttempts:       3,
			UploadTries:       1,
			InitialBackoffMs:  10,
			MaxBackoffSeconds: 1,
			PropertyIDs:       []string{"prop-1"},
		},
		Checklist: config.Checklist{VoltageTolerancePct: 10, AmperageTolerancePct: 10},
	}
}

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newTestEnv(t *testing.T, remote *stubRemote) *env {
	cfg := testConfig(t)
	return &env{open: func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, cfg, app.Options{Remote: remote})
	}}
}

func TestQueueCommands(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		e := newTestEnv(t, &stubRemote{})
		out, err := run(t, e, "queue", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Queue is empty")
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		e := newTestEnv(t, &stubRemote{})
		_, err := run(t, e, "queue", "list", "--status", "stuck")
		assert.Error(t, err)
	})

	t.Run("retry of unknown entry fails", func(t *testing.T) {
		e := newTestEnv(t, &stubRemote{})
		_, err := run(t, e, "queue", "retry", "nope")
		assert.ErrorIs(t, err, models.ErrQueueEntryNotFound)
	})

	t.Run("retry requires an id", func(t *testing.T) {
		e := newTestEnv(t, &stubRemote{})
		_, err := run(t, e, "queue", "retry")
		assert.Error(t, err)
	})
}

func TestSyncPullThenEquipmentList(t *testing.T) {
	remote := &stubRemote{equipment: map[string][]*models.Equipment{
		"prop-1": {
			{ID: "eq-1", PropertyID: "prop-1", Name: "Tablero general", Type: models.EquipmentElectricalPanel, Subtype: models.SubtypeDistribution, UpdatedAt: time.Now().UTC()},
			{ID: "eq-2", PropertyID: "prop-1", Name: "Luz de emergencia", Type: models.EquipmentEmergencyLight, UpdatedAt: time.Now().UTC()},
		},
	}}
	e := newTestEnv(t, remote)

	out, err := run(t, e, "sync", "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "Equipment:  2")

	t.Run("table output", func(t *testing.T) {
		out, err := run(t, e, "equipment", "list", "prop-1")
		require.NoError(t, err)
		assert.Contains(t, out, "Tablero general")
		assert.Contains(t, out, "Luz de emergencia")
	})

	t.Run("filtered json output", func(t *testing.T) {
		out, err := run(t, e, "--json", "equipment", "list", "prop-1", "--type", string(models.EquipmentElectricalPanel))
		require.NoError(t, err)

		var resp models.EquipmentListResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Equal(t, 1, resp.TotalCount)
		assert.Equal(t, "eq-1", resp.Equipment[0].ID)
	})

	t.Run("unknown property", func(t *testing.T) {
		out, err := run(t, e, "equipment", "list", "prop-9")
		require.NoError(t, err)
		assert.Contains(t, out, "No equipment mirrored")
	})
}

func TestSessionShow(t *testing.T) {
	remote := &stubRemote{equipment: map[string][]*models.Equipment{
		"prop-1": {
			{ID: "eq-1", PropertyID: "prop-1", Name: "Tablero general", Type: models.EquipmentElectricalPanel, Subtype: models.SubtypeDistribution,
				Circuits: []models.Circuit{{ID: "c1", Label: "ITG", NominalVoltage: 220, RatedAmperage: 32}}, UpdatedAt: time.Now().UTC()},
		},
	}}
	e := newTestEnv(t, remote)
	_, err := run(t, e, "sync", "pull")
	require.NoError(t, err)

	t.Run("reports blocking issues of the first step", func(t *testing.T) {
		out, err := run(t, e, "session", "show", models.SessionKey("eq-1", ""))
		require.NoError(t, err)
		assert.Contains(t, out, "eq-1:adhoc")
		assert.Contains(t, out, "Blocking issues:")
	})

	t.Run("session appears in list", func(t *testing.T) {
		out, err := run(t, e, "session", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "eq-1:adhoc")
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := run(t, e, "session", "show", "no-separator")
		assert.Error(t, err)
	})
}

func TestSyncPushEmptyQueue(t *testing.T) {
	e := newTestEnv(t, &stubRemote{})

	out, err := run(t, e, "--json", "sync", "push")
	require.NoError(t, err)

	var res struct {
		Processed int `json:"processed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res.Processed)

	out, err = run(t, e, "sync", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending:  0")
}

func TestCapturesSweep(t *testing.T) {
	e := newTestEnv(t, &stubRemote{})

	out, err := run(t, e, "captures", "sweep", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 0 files, 0 orphaned, 0 removed")
}
