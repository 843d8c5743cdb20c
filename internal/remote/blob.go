package remote

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsync/inspector/internal/models"
)

// BlobName builds the object name for an uploaded photo. Names are
// timestamp plus random, so the same image uploaded twice is stored twice.
func BlobName(folder string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	name := fmt.Sprintf("%d_%s.jpg", now.UnixMilli(), suffix)

	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// PhotoFolder is the remote folder for a session's photos
func PhotoFolder(equipmentID, maintenanceID string) string {
	if maintenanceID == "" {
		maintenanceID = models.AdhocMaintenanceID
	}
	return path.Join("maintenance", equipmentID, maintenanceID)
}
