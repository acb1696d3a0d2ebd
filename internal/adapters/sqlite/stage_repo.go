// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/stagehand/internal/ports/secondary"
)

// StageRepository implements secondary.StageRepository with SQLite.
type StageRepository struct {
	db *sql.DB
}

// NewStageRepository creates a new SQLite stage repository.
func NewStageRepository(db *sql.DB) *StageRepository {
	return &StageRepository{db: db}
}

const stageSelectCols = "id, position, is_active, is_required, dependencies, config, created_at, updated_at"

func scanStage(row interface{ Scan(...any) error }) (*secondary.StageRecord, error) {
	var (
		deps      string
		config    string
		createdAt time.Time
		updatedAt time.Time
	)

	record := &secondary.StageRecord{}
	err := row.Scan(&record.ID, &record.Position, &record.IsActive, &record.IsRequired, &deps, &config, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Dependencies, err = unmarshalStrings(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dependencies: %w", err)
	}
	record.Config, err = unmarshalMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	return record, nil
}

// Create persists a new stage definition.
func (r *StageRepository) Create(ctx context.Context, stage *secondary.StageRecord) error {
	deps, err := marshalStrings(stage.Dependencies)
	if err != nil {
		return err
	}
	config, err := marshalMap(stage.Config)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO stages (id, position, is_active, is_required, dependencies, config) VALUES (?, ?, ?, ?, ?, ?)`,
		stage.ID, stage.Position, stage.IsActive, stage.IsRequired, deps, config,
	)
	if err != nil {
		return fmt.Errorf("failed to create stage: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing definition.
func (r *StageRepository) Update(ctx context.Context, stage *secondary.StageRecord) error {
	deps, err := marshalStrings(stage.Dependencies)
	if err != nil {
		return err
	}
	config, err := marshalMap(stage.Config)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE stages SET position = ?, is_active = ?, is_required = ?, dependencies = ?, config = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		stage.Position, stage.IsActive, stage.IsRequired, deps, config, stage.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage %s not found", stage.ID)
	}

	return nil
}

// GetByID retrieves a stage definition. Returns nil, nil when not registered.
func (r *StageRepository) GetByID(ctx context.Context, id string) (*secondary.StageRecord, error) {
	record, err := scanStage(r.db.QueryRowContext(ctx,
		"SELECT "+stageSelectCols+" FROM stages WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	return record, nil
}

// List retrieves definitions ordered by position then ID.
func (r *StageRepository) List(ctx context.Context, activeOnly bool) ([]*secondary.StageRecord, error) {
	query := "SELECT " + stageSelectCols + " FROM stages"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY position, id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var stages []*secondary.StageRecord
	for rows.Next() {
		record, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, record)
	}

	return stages, rows.Err()
}

// Exists checks whether a stage is registered.
func (r *StageRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stages WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check stage existence: %w", err)
	}
	return count > 0, nil
}

// Deactivate flips is_active off without deleting history.
func (r *StageRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE stages SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate stage: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage %s not found", id)
	}

	return nil
}

// Ensure StageRepository implements the interface
var _ secondary.StageRepository = (*StageRepository)(nil)
