package models

import (
	"database/sql"
	"time"
)

// Claim represents an exclusive right for one executor to work a
// (thread, stage) pair. Claims are never deleted; history is retained
// for the flow view.
type Claim struct {
	ID           string
	ThreadID     string
	StageID      string
	ExecutorID   string
	Status       string
	ReviewStatus string
	Metadata     map[string]any
	AcquiredAt   time.Time
	ReleasedAt   sql.NullTime
}

// Claim status constants
const (
	ClaimStatusActive    = "active"
	ClaimStatusCompleted = "completed"
	ClaimStatusFailed    = "failed"
	ClaimStatusReleased  = "released"
)

// Claim review status constants (human/process approval gate,
// independent of execution status)
const (
	ClaimReviewPending  = "pending"
	ClaimReviewApproved = "approved"
)
