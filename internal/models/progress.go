package models

import (
	"database/sql"
	"time"
)

// Progress represents the latest recorded outcome of executing a
// (thread, stage) pair. One row per pair, mutated in place on every
// attempt.
type Progress struct {
	ID           string
	ThreadID     string
	StageID      string
	Status       string
	AgentID      sql.NullString
	ClaimID      sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	DurationMS   sql.NullInt64
	InputData    map[string]any
	OutputData   map[string]any
	StateUpdate  map[string]any
	ErrorMessage sql.NullString
	ErrorStack   sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Progress status constants
const (
	ProgressStatusPending   = "pending"
	ProgressStatusRunning   = "running"
	ProgressStatusCompleted = "completed"
	ProgressStatusFailed    = "failed"
	ProgressStatusSkipped   = "skipped"
	ProgressStatusTimeout   = "timeout"
	ProgressStatusPaused    = "paused"

	// ProgressStatusDone is accepted at the boundary as an alias of
	// completed. It is never stored.
	ProgressStatusDone = "done"
)
