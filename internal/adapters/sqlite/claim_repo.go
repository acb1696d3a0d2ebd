package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/secondary"
)

// ClaimRepository implements secondary.ClaimRepository with SQLite.
// Mutual exclusion rests entirely on the partial unique index over
// active claims; there is no in-process locking because executors may be
// separate processes.
type ClaimRepository struct {
	db *sql.DB
}

// NewClaimRepository creates a new SQLite claim repository.
func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

const claimSelectCols = "id, thread_id, stage_id, executor_id, status, review_status, metadata, acquired_at, released_at"

func scanClaim(row interface{ Scan(...any) error }) (*secondary.ClaimRecord, error) {
	var (
		metadata   string
		acquiredAt time.Time
		releasedAt sql.NullTime
	)

	record := &secondary.ClaimRecord{}
	err := row.Scan(&record.ID, &record.ThreadID, &record.StageID, &record.ExecutorID,
		&record.Status, &record.ReviewStatus, &metadata, &acquiredAt, &releasedAt)
	if err != nil {
		return nil, err
	}

	record.Metadata, err = unmarshalMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	record.AcquiredAt = acquiredAt.Format(time.RFC3339)
	if releasedAt.Valid {
		record.ReleasedAt = releasedAt.Time.Format(time.RFC3339)
	}

	return record, nil
}

func isUniqueViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Acquire inserts a new active claim in a single atomic operation. On a
// unique-index violation the existing active claim is returned as the
// conflict. If the holder releases between our failed insert and the
// conflict lookup, the insert is retried once.
func (r *ClaimRepository) Acquire(ctx context.Context, claim *secondary.ClaimRecord) (*secondary.ClaimRecord, error) {
	metadata, err := marshalMap(claim.Metadata)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO claims (id, thread_id, stage_id, executor_id, status, review_status, metadata) VALUES (?, ?, ?, ?, 'active', 'pending', ?)`,
			claim.ID, claim.ThreadID, claim.StageID, claim.ExecutorID, metadata,
		)
		if err == nil {
			return nil, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to acquire claim: %w", err)
		}

		conflict, getErr := r.GetActive(ctx, claim.ThreadID, claim.StageID)
		if getErr != nil {
			return nil, getErr
		}
		if conflict != nil {
			return conflict, nil
		}
		// Holder released in the window between insert and lookup.
	}

	return nil, fmt.Errorf("failed to acquire claim: %w", err)
}

// GetByID retrieves a claim. Returns nil, nil when unknown.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*secondary.ClaimRecord, error) {
	record, err := scanClaim(r.db.QueryRowContext(ctx,
		"SELECT "+claimSelectCols+" FROM claims WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return record, nil
}

// GetActive retrieves the active claim for a pair, or nil, nil.
func (r *ClaimRepository) GetActive(ctx context.Context, threadID, stageID string) (*secondary.ClaimRecord, error) {
	record, err := scanClaim(r.db.QueryRowContext(ctx,
		"SELECT "+claimSelectCols+" FROM claims WHERE thread_id = ? AND stage_id = ? AND status = 'active'",
		threadID, stageID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active claim: %w", err)
	}
	return record, nil
}

// Release moves an active claim to a terminal status. The conditional
// update makes release idempotent: a claim already released keeps its
// original terminal status and released_at, and the stored record is
// returned unchanged.
func (r *ClaimRepository) Release(ctx context.Context, id, status string) (*secondary.ClaimRecord, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE claims SET status = ?, released_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		status, id, models.ClaimStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to release claim: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Approve sets the review status to approved and stamps approved_at into
// metadata. Approval is independent of execution status.
func (r *ClaimRepository) Approve(ctx context.Context, id string) (*secondary.ClaimRecord, error) {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["approved_at"] = time.Now().UTC().Format(time.RFC3339)
	encoded, err := marshalMap(metadata)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE claims SET review_status = ?, metadata = ? WHERE id = ?`,
		models.ClaimReviewApproved, encoded, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve claim: %w", err)
	}

	return r.GetByID(ctx, id)
}

// LatestByStage returns the most recently acquired claim per stage,
// optionally restricted to the given threads.
func (r *ClaimRepository) LatestByStage(ctx context.Context, threadIDs []string) (map[string]*secondary.ClaimRecord, error) {
	query := "SELECT " + claimSelectCols + " FROM claims"
	args := []any{}

	if len(threadIDs) > 0 {
		query += " WHERE thread_id IN (?" + strings.Repeat(",?", len(threadIDs)-1) + ")"
		for _, id := range threadIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY acquired_at, rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	// Rows arrive oldest first; the last one scanned per stage wins.
	latest := make(map[string]*secondary.ClaimRecord)
	for rows.Next() {
		record, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		latest[record.StageID] = record
	}

	return latest, rows.Err()
}

// Ensure ClaimRepository implements the interface
var _ secondary.ClaimRepository = (*ClaimRepository)(nil)
