package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

const maxErrorBody = 4 << 10

// HTTPClient talks to a PostgREST-style backend: object storage for
// photos and REST tables for maintenance responses, equipment and history.
type HTTPClient struct {
	baseURL    string
	bucket     string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPClient builds a client for cfg. Requests are authorised with, in
// order of preference, OAuth2 client credentials, a Google service account
// file, or the static API key used as a bearer token.
func NewHTTPClient(ctx context.Context, cfg config.Remote) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base url is empty", ErrNotConfigured)
	}

	base := &http.Client{Timeout: cfg.Timeout()}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case cfg.TokenURL != "" && cfg.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(ctx)
	case cfg.FirebaseCredentialsPath != "":
		data, err := os.ReadFile(cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials: %w", err)
		}
		client = oauth2.NewClient(ctx, creds.TokenSource)
	case cfg.APIKey != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}))
	default:
		client = base
	}
	client.Timeout = cfg.Timeout()

	return newHTTPClient(cfg.BaseURL, cfg.Bucket, cfg.APIKey, client), nil
}

func newHTTPClient(baseURL, bucket, apiKey string, client *http.Client) *HTTPClient {
	if bucket == "" {
		bucket = "maintenance-photos"
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		apiKey:     apiKey,
		httpClient: client,
		now:        time.Now,
	}
}

// UploadPhoto stores a JPEG under a fresh blob name in folder
func (c *HTTPClient) UploadPhoto(ctx context.Context, data []byte, folder string) (*models.RemotePhoto, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "http", "UploadPhoto")
	defer span.End()

	name := BlobName(folder, c.now())
	objectURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, objectURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("x-upsert", "false")

	if err := c.do(req, "upload photo", nil); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSuccess(span)
	return &models.RemotePhoto{
		RemotePath: name,
		URL:        fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, name),
	}, nil
}

// maintenanceRow is the remote table shape of a maintenance response
type maintenanceRow struct {
	ID                  string                            `json:"id,omitempty"`
	LocalRef            string                            `json:"local_ref"`
	EquipmentID         string                            `json:"equipment_id"`
	MaintenanceID       *string                           `json:"maintenance_id"`
	PropertyID          *string                           `json:"property_id"`
	StartedAt           time.Time                         `json:"started_at"`
	FinishedAt          time.Time                         `json:"finished_at"`
	Checklist           map[string]bool                   `json:"checklist"`
	Measurements        map[string]models.Measurement     `json:"measurements"`
	ItemObservations    map[string]models.ItemObservation `json:"item_observations"`
	Protocol            map[string]bool                   `json:"protocol"`
	SelectedInstruments []models.Instrument               `json:"selected_instruments"`
	PrePhotos           []string                          `json:"pre_photos"`
	PostPhotos          []string                          `json:"post_photos"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func photoURLs(photos []models.PhotoItem) []string {
	urls := make([]string, 0, len(photos))
	for _, p := range photos {
		urls = append(urls, p.URL)
	}
	return urls
}

// InsertOrUpdateMaintenanceResponse upserts the response keyed by its local
// reference, so a retried insert updates the row written by the first try.
func (c *HTTPClient) InsertOrUpdateMaintenanceResponse(ctx context.Context, payload *models.MaintenanceResponsePayload) (string, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "http", "InsertOrUpdateMaintenanceResponse")
	defer span.End()

	row := maintenanceRow{
		LocalRef:            payload.LocalRef,
		EquipmentID:         payload.EquipmentID,
		MaintenanceID:       optional(payload.MaintenanceID),
		PropertyID:          optional(payload.PropertyID),
		StartedAt:           payload.StartTime,
		FinishedAt:          payload.FinishedAt,
		Checklist:           payload.Checklist,
		Measurements:        payload.Measurements,
		ItemObservations:    payload.ItemObservations,
		Protocol:            payload.Protocol,
		SelectedInstruments: payload.SelectedInstruments,
		PrePhotos:           photoURLs(payload.PrePhotos),
		PostPhotos:          photoURLs(payload.PostPhotos),
	}
	body, err := json.Marshal([]maintenanceRow{row})
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/rest/v1/maintenance_responses?on_conflict=local_ref"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	var saved []maintenanceRow
	if err := c.do(req, "upsert maintenance response", &saved); err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	if len(saved) == 0 || saved[0].ID == "" {
		err := &APIError{Op: "upsert maintenance response", StatusCode: http.StatusBadGateway, Message: "empty representation"}
		observability.RecordError(span, err)
		return "", err
	}

	observability.SetSuccess(span)
	return saved[0].ID, nil
}

// equipmentRow is the remote table shape of an equipment record
type equipmentRow struct {
	ID         string           `json:"id"`
	PropertyID string           `json:"property_id"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Subtype    *string          `json:"subtype"`
	Location   *string          `json:"location"`
	Circuits   []models.Circuit `json:"circuits"`
	Deleted    bool             `json:"deleted"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (r equipmentRow) toModel() *models.Equipment {
	eq := &models.Equipment{
		ID:         r.ID,
		PropertyID: r.PropertyID,
		Name:       r.Name,
		Type:       models.EquipmentType(r.Type),
		Circuits:   r.Circuits,
		Deleted:    r.Deleted,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Subtype != nil {
		eq.Subtype = *r.Subtype
	}
	if r.Location != nil {
		eq.Location = *r.Location
	}
	return eq
}

// FetchEquipmentDelta returns equipment of a property changed after since.
// A nil since fetches everything.
func (c *HTTPClient) FetchEquipmentDelta(ctx context.Context, propertyID string, since *time.Time) ([]*models.Equipment, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "http", "FetchEquipmentDelta")
	defer span.End()

	q := url.Values{}
	q.Set("property_id", "eq."+propertyID)
	q.Set("order", "updated_at.asc")
	if since != nil {
		q.Set("updated_at", "gt."+since.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/equipment?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []equipmentRow
	if err := c.do(req, "fetch equipment", &rows); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	equipment := make([]*models.Equipment, 0, len(rows))
	for _, row := range rows {
		equipment = append(equipment, row.toModel())
	}
	observability.SetSuccess(span)
	return equipment, nil
}

type recordRow struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"property_id"`
	EquipmentID   string    `json:"equipment_id"`
	MaintenanceID *string   `json:"maintenance_id"`
	LocalRef      *string   `json:"local_ref"`
	Status        string    `json:"status"`
	CompletedAt   time.Time `json:"completed_at"`
	Summary       *string   `json:"summary"`
}

// FetchMaintenanceRecords returns the finalized maintenance history of a property
func (c *HTTPClient) FetchMaintenanceRecords(ctx context.Context, propertyID string) ([]*models.MaintenanceRecord, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "http", "FetchMaintenanceRecords")
	defer span.End()

	q := url.Values{}
	q.Set("property_id", "eq."+propertyID)
	q.Set("status", fmt.Sprintf("in.(%s,%s)", models.RecordCompleted, models.RecordFlagged))
	q.Set("order", "completed_at.desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/maintenance_records?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []recordRow
	if err := c.do(req, "fetch maintenance records", &rows); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	records := make([]*models.MaintenanceRecord, 0, len(rows))
	for _, row := range rows {
		rec := &models.MaintenanceRecord{
			ID:          row.ID,
			PropertyID:  row.PropertyID,
			EquipmentID: row.EquipmentID,
			Status:      row.Status,
			CompletedAt: row.CompletedAt,
		}
		if row.MaintenanceID != nil {
			rec.MaintenanceID = *row.MaintenanceID
		}
		if row.LocalRef != nil {
			rec.LocalRef = *row.LocalRef
		}
		if row.Summary != nil {
			rec.Summary = *row.Summary
		}
		records = append(records, rec)
	}
	observability.SetSuccess(span)
	return records, nil
}

// do sends req and decodes a JSON reply into out when out is non-nil.
// Non-2xx replies become *APIError.
func (c *HTTPClient) do(req *http.Request, op string, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
