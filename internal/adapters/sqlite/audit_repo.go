package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/stagehand/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
// The table is append-only: this type exposes no update or delete path.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditSelectCols = "id, event_name, thread_id, stage_id, payload, created_at"

func scanAudit(row interface{ Scan(...any) error }) (*secondary.AuditRecord, error) {
	var (
		threadID  sql.NullString
		stageID   sql.NullString
		payload   string
		createdAt time.Time
	)

	record := &secondary.AuditRecord{}
	err := row.Scan(&record.ID, &record.EventName, &threadID, &stageID, &payload, &createdAt)
	if err != nil {
		return nil, err
	}

	record.ThreadID = threadID.String
	record.StageID = stageID.String
	record.Payload, err = unmarshalMap(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)

	return record, nil
}

// Append durably writes one event. The write is committed before Append
// returns.
func (r *AuditRepository) Append(ctx context.Context, event *secondary.AuditRecord) error {
	payload, err := marshalMap(event.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, event_name, thread_id, stage_id, payload) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.EventName, nullString(event.ThreadID), nullString(event.StageID), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// ListByPrefix retrieves the most recent events whose name starts with
// prefix, newest first. rowid breaks same-second timestamp ties.
func (r *AuditRepository) ListByPrefix(ctx context.Context, prefix string, limit int) ([]*secondary.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+auditSelectCols+" FROM audit_events WHERE event_name LIKE ? || '%' ORDER BY created_at DESC, rowid DESC LIMIT ?",
		prefix, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*secondary.AuditRecord
	for rows.Next() {
		record, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, record)
	}

	return events, rows.Err()
}

// LastTimestampForStage returns the created_at of the most recent event
// referencing a stage, or "" when none exists.
func (r *AuditRepository) LastTimestampForStage(ctx context.Context, stageID string) (string, error) {
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT created_at FROM audit_events WHERE stage_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		stageID,
	).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last audit timestamp: %w", err)
	}
	return createdAt.Format(time.RFC3339), nil
}

// Ensure AuditRepository implements the interface
var _ secondary.AuditRepository = (*AuditRepository)(nil)
