package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// Notifier alerts field devices about sync outcomes that need a person
type Notifier interface {
	EntryFailed(ctx context.Context, entry *models.SyncQueueEntry) error
	SessionSynced(ctx context.Context, sessionKey, remoteID string) error
}

// PushNotifier sends Firebase Cloud Messaging messages to a topic the
// technicians' devices subscribe to, using the HTTP v1 API
type PushNotifier struct {
	endpoint   string
	topic      string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// NewPushNotifier creates a PushNotifier. Credentials come from
// credentialsPath when set, otherwise from the application default credentials.
func NewPushNotifier(ctx context.Context, projectID, credentialsPath, topic string) (*PushNotifier, error) {
	if topic == "" {
		return nil, fmt.Errorf("fcm topic is required")
	}

	var creds *google.Credentials
	var err error
	if credentialsPath != "" {
		data, readErr := os.ReadFile(credentialsPath)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, fcmScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, fcmScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials: %w", err)
	}

	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	endpoint := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", projectID)
	return newPushNotifier(endpoint, topic, creds.TokenSource, &http.Client{Timeout: 15 * time.Second}), nil
}

func newPushNotifier(endpoint, topic string, tokens oauth2.TokenSource, client *http.Client) *PushNotifier {
	return &PushNotifier{
		endpoint:   endpoint,
		topic:      topic,
		tokens:     oauth2.ReuseTokenSource(nil, tokens),
		httpClient: client,
	}
}

// FCM API message structures
type fcmMessage struct {
	Message fcmMessageBody `json:"message"`
}

type fcmMessageBody struct {
	Topic        string            `json:"topic"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Android      *fcmAndroid       `json:"android,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string                  `json:"priority,omitempty"`
	Notification *fcmAndroidNotification `json:"notification,omitempty"`
}

type fcmAndroidNotification struct {
	ClickAction string `json:"click_action,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
}

// EntryFailed tells the devices an upload gave up and needs a manual retry
func (n *PushNotifier) EntryFailed(ctx context.Context, entry *models.SyncQueueEntry) error {
	body := fmt.Sprintf("Upload for %s failed after %d attempts: %s", entry.SessionKey, entry.Attempts, entry.LastError)
	return n.send(ctx, fcmMessageBody{
		Data: map[string]string{
			"type":       "sync_failed",
			"entryId":    entry.ID,
			"entityType": string(entry.EntityType),
			"sessionKey": entry.SessionKey,
		},
		Notification: &fcmNotification{Title: "Sync needs attention", Body: body},
		Android: &fcmAndroid{
			Priority: "high",
			Notification: &fcmAndroidNotification{
				ClickAction: "OPEN_SYNC_QUEUE",
				ChannelID:   "sync_failures",
			},
		},
	})
}

// SessionSynced tells the devices a finalized session reached the remote store
func (n *PushNotifier) SessionSynced(ctx context.Context, sessionKey, remoteID string) error {
	return n.send(ctx, fcmMessageBody{
		Data: map[string]string{
			"type":       "session_synced",
			"sessionKey": sessionKey,
			"remoteId":   remoteID,
		},
	})
}

func (n *PushNotifier) send(ctx context.Context, body fcmMessageBody) error {
	token, err := n.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	body.Topic = n.topic
	data, err := json.Marshal(fcmMessage{Message: body})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("FCM API error: status=%d body=%s", resp.StatusCode, respBody)
	}

	observability.WithContext(ctx).WithField("type", body.Data["type"]).Debug("FCM notification sent")
	return nil
}
