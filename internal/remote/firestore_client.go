package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fieldsync/inspector/internal/config"
	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

// Firestore collections
const (
	collectionResponses = "maintenance_responses"
	collectionEquipment = "equipment"
	collectionRecords   = "maintenance_records"
)

// FirestoreClient stores maintenance responses as Firestore documents keyed
// by their local reference and photos as Cloud Storage objects.
type FirestoreClient struct {
	client  *firestore.Client
	storage *storage.Client
	bucket  string
	now     func() time.Time
}

// NewFirestoreClient connects to the Firebase project in cfg
func NewFirestoreClient(ctx context.Context, cfg config.Remote) (*FirestoreClient, error) {
	if cfg.FirebaseProjectID == "" || cfg.StorageBucket == "" {
		return nil, fmt.Errorf("%w: firebase project and storage bucket are required", ErrNotConfigured)
	}

	var opts []option.ClientOption
	if cfg.FirebaseCredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("error initializing Cloud Storage client: %w", err)
	}

	observability.WithFields(map[string]interface{}{
		"project": cfg.FirebaseProjectID,
		"bucket":  cfg.StorageBucket,
	}).Info("Connected to Firestore")

	return &FirestoreClient{
		client:  client,
		storage: storageClient,
		bucket:  cfg.StorageBucket,
		now:     time.Now,
	}, nil
}

// Close closes the Firestore and Cloud Storage clients
func (c *FirestoreClient) Close() error {
	return errors.Join(c.client.Close(), c.storage.Close())
}

// UploadPhoto writes a JPEG object under a fresh blob name in folder
func (c *FirestoreClient) UploadPhoto(ctx context.Context, data []byte, folder string) (*models.RemotePhoto, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "firestore", "UploadPhoto")
	defer span.End()

	name := BlobName(folder, c.now())
	w := c.storage.Bucket(c.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "image/jpeg"

	if _, err := w.Write(data); err != nil {
		w.Close()
		err = mapGoogleError("upload photo", err)
		observability.RecordError(span, err)
		return nil, err
	}
	if err := w.Close(); err != nil {
		err = mapGoogleError("upload photo", err)
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSuccess(span)
	return &models.RemotePhoto{
		RemotePath: name,
		URL:        fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucket, name),
	}, nil
}

type responseDoc struct {
	LocalRef            string                            `firestore:"localRef"`
	EquipmentID         string                            `firestore:"equipmentId"`
	MaintenanceID       string                            `firestore:"maintenanceId,omitempty"`
	PropertyID          string                            `firestore:"propertyId,omitempty"`
	StartedAt           time.Time                         `firestore:"startedAt"`
	FinishedAt          time.Time                         `firestore:"finishedAt"`
	Checklist           map[string]bool                   `firestore:"checklist"`
	Measurements        map[string]models.Measurement     `firestore:"measurements"`
	ItemObservations    map[string]models.ItemObservation `firestore:"itemObservations"`
	Protocol            map[string]bool                   `firestore:"protocol"`
	SelectedInstruments []models.Instrument               `firestore:"selectedInstruments"`
	PrePhotos           []string                          `firestore:"prePhotos"`
	PostPhotos          []string                          `firestore:"postPhotos"`
	UpdatedAt           time.Time                         `firestore:"updatedAt"`
}

// InsertOrUpdateMaintenanceResponse writes the response document whose id is
// the local reference. Writing it again replaces the same document.
func (c *FirestoreClient) InsertOrUpdateMaintenanceResponse(ctx context.Context, payload *models.MaintenanceResponsePayload) (string, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "firestore", "InsertOrUpdateMaintenanceResponse")
	defer span.End()

	doc := responseDoc{
		LocalRef:            payload.LocalRef,
		EquipmentID:         payload.EquipmentID,
		MaintenanceID:       payload.MaintenanceID,
		PropertyID:          payload.PropertyID,
		StartedAt:           payload.StartTime,
		FinishedAt:          payload.FinishedAt,
		Checklist:           payload.Checklist,
		Measurements:        payload.Measurements,
		ItemObservations:    payload.ItemObservations,
		Protocol:            payload.Protocol,
		SelectedInstruments: payload.SelectedInstruments,
		PrePhotos:           photoURLs(payload.PrePhotos),
		PostPhotos:          photoURLs(payload.PostPhotos),
		UpdatedAt:           c.now().UTC(),
	}

	ref := c.client.Collection(collectionResponses).Doc(payload.LocalRef)
	if _, err := ref.Set(ctx, doc); err != nil {
		err = mapGoogleError("upsert maintenance response", err)
		observability.RecordError(span, err)
		return "", err
	}

	observability.SetSuccess(span)
	return ref.ID, nil
}

type equipmentDoc struct {
	PropertyID string           `firestore:"propertyId"`
	Name       string           `firestore:"name"`
	Type       string           `firestore:"type"`
	Subtype    string           `firestore:"subtype"`
	Location   string           `firestore:"location"`
	Circuits   []models.Circuit `firestore:"circuits"`
	Deleted    bool             `firestore:"deleted"`
	UpdatedAt  time.Time        `firestore:"updatedAt"`
}

// FetchEquipmentDelta returns equipment of a property changed after since
func (c *FirestoreClient) FetchEquipmentDelta(ctx context.Context, propertyID string, since *time.Time) ([]*models.Equipment, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "firestore", "FetchEquipmentDelta")
	defer span.End()

	q := c.client.Collection(collectionEquipment).Where("propertyId", "==", propertyID)
	if since != nil {
		q = q.Where("updatedAt", ">", *since)
	}
	iter := q.OrderBy("updatedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var equipment []*models.Equipment
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			err = mapGoogleError("fetch equipment", err)
			observability.RecordError(span, err)
			return nil, err
		}

		var doc equipmentDoc
		if err := snap.DataTo(&doc); err != nil {
			observability.WithField("equipment_id", snap.Ref.ID).WithError(err).Warn("Skipping unreadable equipment document")
			continue
		}
		equipment = append(equipment, &models.Equipment{
			ID:         snap.Ref.ID,
			PropertyID: doc.PropertyID,
			Name:       doc.Name,
			Type:       models.EquipmentType(doc.Type),
			Subtype:    doc.Subtype,
			Location:   doc.Location,
			Circuits:   doc.Circuits,
			Deleted:    doc.Deleted,
			UpdatedAt:  doc.UpdatedAt,
		})
	}

	observability.SetSuccess(span)
	return equipment, nil
}

type recordDoc struct {
	PropertyID    string    `firestore:"propertyId"`
	EquipmentID   string    `firestore:"equipmentId"`
	MaintenanceID string    `firestore:"maintenanceId"`
	LocalRef      string    `firestore:"localRef"`
	Status        string    `firestore:"status"`
	CompletedAt   time.Time `firestore:"completedAt"`
	Summary       string    `firestore:"summary"`
}

// FetchMaintenanceRecords returns the finalized maintenance history of a property
func (c *FirestoreClient) FetchMaintenanceRecords(ctx context.Context, propertyID string) ([]*models.MaintenanceRecord, error) {
	ctx, span := observability.StartRemoteSpan(ctx, "firestore", "FetchMaintenanceRecords")
	defer span.End()

	iter := c.client.Collection(collectionRecords).
		Where("propertyId", "==", propertyID).
		Where("status", "in", []string{models.RecordCompleted, models.RecordFlagged}).
		Documents(ctx)
	defer iter.Stop()

	var records []*models.MaintenanceRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			err = mapGoogleError("fetch maintenance records", err)
			observability.RecordError(span, err)
			return nil, err
		}

		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			observability.WithField("record_id", snap.Ref.ID).WithError(err).Warn("Skipping unreadable maintenance record")
			continue
		}
		records = append(records, &models.MaintenanceRecord{
			ID:            snap.Ref.ID,
			PropertyID:    doc.PropertyID,
			EquipmentID:   doc.EquipmentID,
			MaintenanceID: doc.MaintenanceID,
			LocalRef:      doc.LocalRef,
			Status:        doc.Status,
			CompletedAt:   doc.CompletedAt,
			Summary:       doc.Summary,
		})
	}

	observability.SetSuccess(span)
	return records, nil
}

// mapGoogleError turns gRPC and Google API errors into *APIError so they
// classify the same way as REST replies. Other errors pass through.
func mapGoogleError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Op: op, StatusCode: gerr.Code, Message: gerr.Message}
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}

	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument, codes.OutOfRange:
		code = http.StatusBadRequest
	case codes.Unauthenticated:
		code = http.StatusUnauthorized
	case codes.PermissionDenied:
		code = http.StatusForbidden
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.AlreadyExists, codes.FailedPrecondition:
		code = http.StatusConflict
	case codes.ResourceExhausted:
		code = http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	case codes.Unavailable, codes.Aborted, codes.Canceled:
		code = http.StatusServiceUnavailable
	}
	return &APIError{Op: op, StatusCode: code, Message: st.Message()}
}
