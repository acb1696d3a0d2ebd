package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/stagehand/internal/ports/secondary"
)

// ProgressRepository implements secondary.ProgressRepository with SQLite.
// Writes go through a single conditional upsert so that concurrent and
// retried reports for the same (thread, stage) pair converge without a
// lock: the ON CONFLICT guard refuses to regress a terminal status.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new SQLite progress repository.
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressSelectCols = "id, thread_id, stage_id, status, agent_id, claim_id, started_at, completed_at, duration_ms, input_data, output_data, state_update, error_message, error_stack, created_at, updated_at"

func scanProgress(row interface{ Scan(...any) error }) (*secondary.ProgressRecord, error) {
	var (
		agentID      sql.NullString
		claimID      sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		durationMS   sql.NullInt64
		inputData    string
		outputData   string
		stateUpdate  string
		errorMessage sql.NullString
		errorStack   sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
	)

	record := &secondary.ProgressRecord{}
	err := row.Scan(&record.ID, &record.ThreadID, &record.StageID, &record.Status,
		&agentID, &claimID, &startedAt, &completedAt, &durationMS,
		&inputData, &outputData, &stateUpdate, &errorMessage, &errorStack,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.AgentID = agentID.String
	record.ClaimID = claimID.String
	if startedAt.Valid {
		record.StartedAt = startedAt.Time.Format(time.RFC3339)
	}
	if completedAt.Valid {
		record.CompletedAt = completedAt.Time.Format(time.RFC3339)
	}
	record.DurationMS = durationMS.Int64
	record.ErrorMessage = errorMessage.String
	record.ErrorStack = errorStack.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	record.InputData, err = unmarshalMap(inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input_data: %w", err)
	}
	record.OutputData, err = unmarshalMap(outputData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode output_data: %w", err)
	}
	record.StateUpdate, err = unmarshalMap(stateUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state_update: %w", err)
	}

	return record, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// Upsert writes the row for (ThreadID, StageID). The conflict clause's
// WHERE guard is the monotonicity rule: a stored completed/failed row is
// never overwritten by an incoming running/pending one. Zero affected
// rows on a conflicting write means the guard fired and the prior state
// was preserved.
func (r *ProgressRepository) Upsert(ctx context.Context, rec *secondary.ProgressRecord) (bool, error) {
	inputData, err := marshalMap(rec.InputData)
	if err != nil {
		return false, err
	}
	outputData, err := marshalMap(rec.OutputData)
	if err != nil {
		return false, err
	}
	stateUpdate, err := marshalMap(rec.StateUpdate)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO progress (id, thread_id, stage_id, status, agent_id, claim_id, started_at, completed_at, duration_ms, input_data, output_data, state_update, error_message, error_stack)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, stage_id) DO UPDATE SET
			status = excluded.status,
			agent_id = excluded.agent_id,
			claim_id = excluded.claim_id,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms,
			input_data = excluded.input_data,
			output_data = excluded.output_data,
			state_update = excluded.state_update,
			error_message = excluded.error_message,
			error_stack = excluded.error_stack,
			updated_at = CURRENT_TIMESTAMP
		WHERE NOT (progress.status IN ('completed', 'failed') AND excluded.status IN ('running', 'pending'))`,
		rec.ID, rec.ThreadID, rec.StageID, rec.Status,
		nullString(rec.AgentID), nullString(rec.ClaimID),
		nullString(rec.StartedAt), nullString(rec.CompletedAt), nullInt64(rec.DurationMS),
		inputData, outputData, stateUpdate,
		nullString(rec.ErrorMessage), nullString(rec.ErrorStack),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert progress: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// Get retrieves the row for a pair, or nil, nil when never attempted.
func (r *ProgressRepository) Get(ctx context.Context, threadID, stageID string) (*secondary.ProgressRecord, error) {
	record, err := scanProgress(r.db.QueryRowContext(ctx,
		"SELECT "+progressSelectCols+" FROM progress WHERE thread_id = ? AND stage_id = ?",
		threadID, stageID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return record, nil
}

// ListByThread retrieves all rows for a thread.
func (r *ProgressRepository) ListByThread(ctx context.Context, threadID string) ([]*secondary.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+progressSelectCols+" FROM progress WHERE thread_id = ? ORDER BY stage_id",
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ProgressRecord
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CountByStatus aggregates current statuses per stage. Because progress
// is one row per pair, counts are 0/1 per status for a single thread;
// across threads they accumulate.
func (r *ProgressRepository) CountByStatus(ctx context.Context, threadIDs []string) (map[string]map[string]int, error) {
	query := "SELECT stage_id, status, COUNT(*) FROM progress"
	args := []any{}

	if len(threadIDs) > 0 {
		query += " WHERE thread_id IN (?" + strings.Repeat(",?", len(threadIDs)-1) + ")"
		for _, id := range threadIDs {
			args = append(args, id)
		}
	}
	query += " GROUP BY stage_id, status"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate progress: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var stageID, status string
		var count int
		if err := rows.Scan(&stageID, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		if counts[stageID] == nil {
			counts[stageID] = make(map[string]int)
		}
		counts[stageID][status] = count
	}

	return counts, rows.Err()
}

// Ensure ProgressRepository implements the interface
var _ secondary.ProgressRepository = (*ProgressRepository)(nil)
