package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldsync/inspector/internal/models"
)

// PullStateRepository handles pull progress persistence
type PullStateRepository struct {
	db *sql.DB
}

// NewPullStateRepository creates a new PullStateRepository
func NewPullStateRepository(db *sql.DB) *PullStateRepository {
	return &PullStateRepository{db: db}
}

// Get retrieves pull state for a property
func (r *PullStateRepository) Get(ctx context.Context, propertyID string) (*models.PullState, error) {
	query := `SELECT property_id, last_pulled_at, pull_count, created_at, updated_at
		FROM pull_state WHERE property_id = $1`

	var state models.PullState
	err := r.db.QueryRowContext(ctx, query, propertyID).Scan(
		&state.PropertyID,
		&state.LastPulledAt,
		&state.PullCount,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Upsert creates or updates pull state for a property
func (r *PullStateRepository) Upsert(ctx context.Context, state *models.PullState) error {
	query := `INSERT INTO pull_state (property_id, last_pulled_at, pull_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (property_id) DO UPDATE SET
			last_pulled_at = EXCLUDED.last_pulled_at,
			pull_count = EXCLUDED.pull_count,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		state.PropertyID,
		state.LastPulledAt,
		state.PullCount,
		state.CreatedAt,
		state.UpdatedAt,
	)
	return err
}

// MarkPulled records a successful pull that started at the given time
func (r *PullStateRepository) MarkPulled(ctx context.Context, propertyID string, at time.Time) error {
	state, err := r.Get(ctx, propertyID)
	if err != nil {
		return err
	}
	if state == nil {
		state = models.NewPullState(propertyID)
	}

	at = at.UTC()
	state.LastPulledAt = &at
	state.PullCount++
	state.UpdatedAt = time.Now().UTC()
	return r.Upsert(ctx, state)
}
