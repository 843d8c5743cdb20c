package repository

import (
	"context"
	"database/sql"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

const maintenanceRecordColumns = `id, property_id, equipment_id, maintenance_id, local_ref, status, completed_at, summary`

const upsertMaintenanceRecord = `INSERT INTO maintenance_records (` + maintenanceRecordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		property_id = EXCLUDED.property_id,
		equipment_id = EXCLUDED.equipment_id,
		maintenance_id = EXCLUDED.maintenance_id,
		local_ref = EXCLUDED.local_ref,
		status = EXCLUDED.status,
		completed_at = EXCLUDED.completed_at,
		summary = EXCLUDED.summary`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// MaintenanceRecordRepository keeps finalized maintenance history for offline browsing
type MaintenanceRecordRepository struct {
	db *sql.DB
}

// NewMaintenanceRecordRepository creates a new MaintenanceRecordRepository
func NewMaintenanceRecordRepository(db *sql.DB) *MaintenanceRecordRepository {
	return &MaintenanceRecordRepository{db: db}
}

// Upsert stores a single record
func (r *MaintenanceRecordRepository) Upsert(ctx context.Context, record *models.MaintenanceRecord) error {
	ctx, span := observability.StartDBSpan(ctx, "UPSERT", "maintenance_records")
	defer span.End()

	err := upsertRecord(ctx, r.db, record)
	observability.RecordError(span, err)
	return err
}

// ReplaceForProperty swaps the history of a property for the remote copy
func (r *MaintenanceRecordRepository) ReplaceForProperty(ctx context.Context, propertyID string, records []*models.MaintenanceRecord) (err error) {
	ctx, span := observability.StartDBSpan(ctx, "REPLACE", "maintenance_records")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM maintenance_records WHERE property_id = $1`, propertyID); err != nil {
		return err
	}
	for _, record := range records {
		if err = upsertRecord(ctx, tx, record); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByEquipment returns history for one piece of equipment, newest first
func (r *MaintenanceRecordRepository) ListByEquipment(ctx context.Context, equipmentID string) ([]*models.MaintenanceRecord, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "maintenance_records")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT `+maintenanceRecordColumns+`
		FROM maintenance_records WHERE equipment_id = $1 ORDER BY completed_at DESC`, equipmentID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	records := []*models.MaintenanceRecord{}
	for rows.Next() {
		var rec models.MaintenanceRecord
		var maintenanceID, localRef, summary sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.PropertyID,
			&rec.EquipmentID,
			&maintenanceID,
			&localRef,
			&rec.Status,
			&rec.CompletedAt,
			&summary,
		); err != nil {
			return nil, err
		}
		rec.MaintenanceID = maintenanceID.String
		rec.LocalRef = localRef.String
		rec.Summary = summary.String
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func upsertRecord(ctx context.Context, db execer, record *models.MaintenanceRecord) error {
	_, err := db.ExecContext(ctx, upsertMaintenanceRecord,
		record.ID,
		record.PropertyID,
		record.EquipmentID,
		nullString(record.MaintenanceID),
		nullString(record.LocalRef),
		record.Status,
		record.CompletedAt,
		nullString(record.Summary),
	)
	return err
}
