package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(context.Background(), config.Remote{
		BaseURL:        server.URL,
		Bucket:         "photos",
		APIKey:         "secret",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return client
}

func TestBlobName(t *testing.T) {
	t.Run("uses timestamp and random suffix", func(t *testing.T) {
		now := time.UnixMilli(1700000000123)
		name := BlobName("maintenance/eq-1/adhoc", now)

		assert.True(t, strings.HasPrefix(name, "maintenance/eq-1/adhoc/1700000000123_"))
		assert.True(t, strings.HasSuffix(name, ".jpg"))
		assert.Len(t, name, len("maintenance/eq-1/adhoc/1700000000123_")+8+len(".jpg"))
	})

	t.Run("same instant yields different names", func(t *testing.T) {
		now := time.Now()
		assert.NotEqual(t, BlobName("f", now), BlobName("f", now))
	})

	t.Run("empty folder", func(t *testing.T) {
		assert.NotContains(t, BlobName("", time.Now()), "/")
	})
}

func TestPhotoFolder(t *testing.T) {
	assert.Equal(t, "maintenance/eq-1/m-9", PhotoFolder("eq-1", "m-9"))
	assert.Equal(t, "maintenance/eq-1/adhoc", PhotoFolder("eq-1", ""))
}

func TestHTTPClient_UploadPhoto(t *testing.T) {
	t.Run("posts bytes to storage and returns public url", func(t *testing.T) {
		var gotPath, gotAuth, gotType string
		var gotBody []byte
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"Key":"ok"}`))
		})

		photo, err := client.UploadPhoto(context.Background(), []byte("jpeg"), "maintenance/eq-1/m-1")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(gotPath, "/storage/v1/object/photos/maintenance/eq-1/m-1/1700000000000_"))
		assert.Equal(t, "Bearer secret", gotAuth)
		assert.Equal(t, "image/jpeg", gotType)
		assert.Equal(t, []byte("jpeg"), gotBody)
		assert.True(t, strings.HasPrefix(photo.RemotePath, "maintenance/eq-1/m-1/"))
		assert.Contains(t, photo.URL, "/storage/v1/object/public/photos/"+photo.RemotePath)
	})

	t.Run("maps status codes to APIError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad jwt", http.StatusUnauthorized)
		})

		_, err := client.UploadPhoto(context.Background(), []byte("jpeg"), "f")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.True(t, apiErr.Permanent())
	})
}

func TestHTTPClient_InsertOrUpdateMaintenanceResponse(t *testing.T) {
	t.Run("upserts on local_ref and returns remote id", func(t *testing.T) {
		var rows []map[string]interface{}
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/maintenance_responses", r.URL.Path)
			assert.Equal(t, "local_ref", r.URL.Query().Get("on_conflict"))
			assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"id":"remote-42","local_ref":"entry-1"}]`))
		})

		payload := &models.MaintenanceResponsePayload{
			LocalRef:    "entry-1",
			EquipmentID: "eq-1",
			Checklist:   map[string]bool{"c1": true},
			PrePhotos:   []models.PhotoItem{{ID: "p1", URL: "https://cdn/p1.jpg"}},
		}
		id, err := client.InsertOrUpdateMaintenanceResponse(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "remote-42", id)

		require.Len(t, rows, 1)
		assert.Equal(t, "entry-1", rows[0]["local_ref"])
		assert.Nil(t, rows[0]["maintenance_id"])
		assert.Equal(t, []interface{}{"https://cdn/p1.jpg"}, rows[0]["pre_photos"])
	})

	t.Run("empty representation is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

		_, err := client.InsertOrUpdateMaintenanceResponse(context.Background(), &models.MaintenanceResponsePayload{LocalRef: "x"})
		assert.Error(t, err)
	})

	t.Run("conflict is permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"duplicate"}`, http.StatusConflict)
		})

		_, err := client.InsertOrUpdateMaintenanceResponse(context.Background(), &models.MaintenanceResponsePayload{LocalRef: "x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.Permanent())
		assert.Contains(t, apiErr.Message, "duplicate")
	})
}

func TestHTTPClient_FetchEquipmentDelta(t *testing.T) {
	t.Run("filters by property and since", func(t *testing.T) {
		var query map[string][]string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			w.Write([]byte(`[{"id":"eq-1","property_id":"prop-1","name":"Tablero A","type":"electrical_panel",
				"subtype":"distribucion","location":null,"circuits":[{"id":"itg-1","label":"ITG","nominalVoltage":220,"ratedAmperage":32,"hasDifferential":true}],
				"deleted":false,"updated_at":"2024-05-01T10:00:00Z"}]`))
		})

		since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		equipment, err := client.FetchEquipmentDelta(context.Background(), "prop-1", &since)
		require.NoError(t, err)

		assert.Equal(t, "eq.prop-1", query["property_id"][0])
		assert.Equal(t, "gt.2024-04-01T00:00:00Z", query["updated_at"][0])
		require.Len(t, equipment, 1)
		assert.Equal(t, models.EquipmentElectricalPanel, equipment[0].Type)
		assert.Equal(t, "distribucion", equipment[0].Subtype)
		assert.Empty(t, equipment[0].Location)
		require.Len(t, equipment[0].Circuits, 1)
		assert.Equal(t, 220.0, equipment[0].Circuits[0].NominalVoltage)
	})

	t.Run("no since fetches everything", func(t *testing.T) {
		var query map[string][]string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			w.Write([]byte(`[]`))
		})

		equipment, err := client.FetchEquipmentDelta(context.Background(), "prop-1", nil)
		require.NoError(t, err)
		assert.Empty(t, equipment)
		assert.NotContains(t, query, "updated_at")
	})

	t.Run("server error is not permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.FetchEquipmentDelta(context.Background(), "prop-1", nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.False(t, apiErr.Permanent())
	})
}

func TestHTTPClient_FetchMaintenanceRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "in.(completed,flagged)", r.URL.Query().Get("status"))
		w.Write([]byte(`[{"id":"r1","property_id":"prop-1","equipment_id":"eq-1","maintenance_id":"m-1",
			"local_ref":null,"status":"completed","completed_at":"2024-05-02T08:00:00Z","summary":"ok"}]`))
	})

	records, err := client.FetchMaintenanceRecords(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "m-1", records[0].MaintenanceID)
	assert.Empty(t, records[0].LocalRef)
	assert.Equal(t, "ok", records[0].Summary)
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), config.Remote{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
