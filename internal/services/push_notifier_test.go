package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/remote"
)

func TestPushNotifier(t *testing.T) {
	var got fcmMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Message.Data["sessionKey"] == "broken:adhoc" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"name":"projects/p/messages/1"}`))
	}))
	defer srv.Close()

	n := newPushNotifier(srv.URL, "inspectors", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}), srv.Client())

	t.Run("fatal entry", func(t *testing.T) {
		entry := &models.SyncQueueEntry{ID: "e1", EntityType: models.EntityPhoto, SessionKey: "eq-1:adhoc", Attempts: 5, LastError: "timeout"}
		require.NoError(t, n.EntryFailed(context.Background(), entry))

		assert.Equal(t, "Bearer tok", auth)
		assert.Equal(t, "inspectors", got.Message.Topic)
		assert.Equal(t, "sync_failed", got.Message.Data["type"])
		assert.Equal(t, "e1", got.Message.Data["entryId"])
		require.NotNil(t, got.Message.Notification)
		assert.Contains(t, got.Message.Notification.Body, "5 attempts")
	})

	t.Run("synced session is data only", func(t *testing.T) {
		require.NoError(t, n.SessionSynced(context.Background(), "eq-1:adhoc", "r-1"))
		assert.Equal(t, "session_synced", got.Message.Data["type"])
		assert.Nil(t, got.Message.Notification)
	})

	t.Run("api error", func(t *testing.T) {
		err := n.SessionSynced(context.Background(), "broken:adhoc", "r-1")
		assert.Error(t, err)
	})
}

type recordingNotifier struct {
	mu     sync.Mutex
	failed []string
	synced []string
}

func (r *recordingNotifier) EntryFailed(ctx context.Context, entry *models.SyncQueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, entry.ID)
	return nil
}

func (r *recordingNotifier) SessionSynced(ctx context.Context, sessionKey, remoteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, sessionKey)
	return nil
}

func TestSyncEngine_Notifications(t *testing.T) {
	ctx := context.Background()

	t.Run("fatal failure and synced session reach devices", func(t *testing.T) {
		h := newTestHarness(t)
		notifier := &recordingNotifier{}
		h.engine.deps.Notifier = notifier
		h.seedPanel(t, "eq-1")
		key := models.SessionKey("eq-1", "")
		entry := h.completeSession(t, key)

		h.remote.upsertErr = func(call int) error {
			if call == 0 {
				return &remote.APIError{Op: "upsert", StatusCode: http.StatusBadRequest}
			}
			return nil
		}

		_, err := h.engine.PushData(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{entry.ID}, notifier.failed)
		assert.Empty(t, notifier.synced)

		_, err = h.engine.Retry(ctx, entry.ID)
		require.NoError(t, err)
		_, err = h.engine.PushData(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{key}, notifier.synced)
	})

	t.Run("transient failures stay quiet", func(t *testing.T) {
		h := newTestHarness(t)
		notifier := &recordingNotifier{}
		h.engine.deps.Notifier = notifier
		h.seedPanel(t, "eq-1")
		h.capture(t, models.SessionKey("eq-1", ""), models.SectionPreVisual, "")

		h.remote.uploadErr = func(int, string) error { return errors.New("connection reset") }
		_, err := h.engine.PushData(ctx)
		require.NoError(t, err)
		assert.Empty(t, notifier.failed)
	})
}
