package primary

import "context"

// ProgressService defines the primary port for idempotent per-stage
// outcome reporting. This is the thin entry point used by external
// executors that already hold their own claim.
type ProgressService interface {
	// ReportProgress upserts the progress row for a (thread, stage)
	// pair. Dry-run requests audit the attempt without writing progress.
	ReportProgress(ctx context.Context, req ReportProgressRequest) (*ReportProgressResponse, error)

	// GetProgress retrieves the row for a pair, or nil when never
	// attempted.
	GetProgress(ctx context.Context, threadID, stageID string) (*Progress, error)

	// AggregateByStatus returns the per-stage status histogram for a
	// thread. Counts are 0/1 per status because progress is one row per
	// pair; history-aware counts require the audit trail.
	AggregateByStatus(ctx context.Context, threadID string) (map[string]map[string]int, error)
}

// Progress is the caller-facing view of a progress row.
type Progress struct {
	ID           string
	ThreadID     string
	StageID      string
	Status       string
	AgentID      string
	ClaimID      string
	StartedAt    string
	CompletedAt  string
	DurationMS   int64
	InputData    map[string]any
	OutputData   map[string]any
	StateUpdate  map[string]any
	ErrorMessage string
	ErrorStack   string
	CreatedAt    string
	UpdatedAt    string
}

// ReportProgressRequest contains parameters for reporting progress.
// Timestamps are RFC3339 strings; DurationMS is derived from them when
// zero and both are present. Status accepts "done" as an alias of
// "completed".
type ReportProgressRequest struct {
	ThreadID     string
	StageID      string
	Status       string
	AgentID      string
	ClaimID      string
	DryRun       bool
	StartedAt    string
	CompletedAt  string
	DurationMS   int64
	InputData    map[string]any
	OutputData   map[string]any
	StateUpdate  map[string]any
	ErrorMessage string
	ErrorStack   string
}

// ReportProgressResponse reports the stored row, or just the dry-run
// acknowledgement when no write happened.
type ReportProgressResponse struct {
	Progress *Progress
	DryRun   bool
}
