package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldsync/inspector/internal/models"
	"github.com/fieldsync/inspector/internal/observability"
)

const equipmentColumns = `id, property_id, name, type, subtype, location, circuits, deleted, updated_at`

// EquipmentRepository is the local equipment mirror
type EquipmentRepository struct {
	db *sql.DB
}

// NewEquipmentRepository creates a new EquipmentRepository
func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// Query lists live equipment of a property matching the filter
func (r *EquipmentRepository) Query(ctx context.Context, propertyID string, filter models.EquipmentFilter) ([]*models.Equipment, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "equipment")
	defer span.End()

	clauses := []string{"property_id = $1", "NOT deleted"}
	args := []interface{}{propertyID}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		clauses = append(clauses, "type = "+next(string(filter.Type)))
	}
	if filter.Subtype != "" {
		clauses = append(clauses, "subtype = "+next(filter.Subtype))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + strings.ToLower(search) + "%")
		clauses = append(clauses, "(LOWER(name) LIKE "+p+" OR LOWER(COALESCE(location, '')) LIKE "+p+")")
	}

	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer rows.Close()

	equipment := []*models.Equipment{}
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		equipment = append(equipment, eq)
	}
	return equipment, rows.Err()
}

// GetByID retrieves equipment by ID, including tombstoned rows
func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (*models.Equipment, error) {
	ctx, span := observability.StartDBSpan(ctx, "SELECT", "equipment")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
	eq, err := scanEquipment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return eq, nil
}

// Upsert replaces the mirrored row with the remote version
func (r *EquipmentRepository) Upsert(ctx context.Context, eq *models.Equipment) error {
	ctx, span := observability.StartDBSpan(ctx, "UPSERT", "equipment")
	defer span.End()

	circuits := eq.Circuits
	if circuits == nil {
		circuits = []models.Circuit{}
	}
	circuitsJSON, err := json.Marshal(circuits)
	if err != nil {
		return err
	}

	query := `INSERT INTO equipment (` + equipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			location = EXCLUDED.location,
			circuits = EXCLUDED.circuits,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		eq.ID,
		eq.PropertyID,
		eq.Name,
		string(eq.Type),
		nullString(eq.Subtype),
		nullString(eq.Location),
		string(circuitsJSON),
		eq.Deleted,
		eq.UpdatedAt,
	)
	observability.RecordError(span, err)
	return err
}

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var eq models.Equipment
	var eqType, circuits string
	var subtype, location sql.NullString

	if err := row.Scan(
		&eq.ID,
		&eq.PropertyID,
		&eq.Name,
		&eqType,
		&subtype,
		&location,
		&circuits,
		&eq.Deleted,
		&eq.UpdatedAt,
	); err != nil {
		return nil, err
	}

	eq.Type = models.EquipmentType(eqType)
	eq.Subtype = subtype.String
	eq.Location = location.String
	if err := json.Unmarshal([]byte(circuits), &eq.Circuits); err != nil {
		return nil, fmt.Errorf("equipment %s has unreadable circuits: %w", eq.ID, err)
	}
	return &eq, nil
}
