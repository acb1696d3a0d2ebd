package primary

import "context"

// FlowService defines the primary port for the dashboard-facing read
// model: per-stage catalog entry joined with the most recent claim, the
// current progress histogram, and the last audit timestamp.
type FlowService interface {
	GetFlowView(ctx context.Context, threadIDs []string) ([]*FlowEntry, error)
}

// FlowEntry is one stage's row in the flow view. A reader can always
// distinguish never-attempted (no progress, no claim) from attempted and
// failed, from claimed with no progress yet, from dry-run only (audit
// timestamp without progress).
type FlowEntry struct {
	Stage              *Stage
	Claim              *Claim
	ProgressCounts     map[string]int
	LastAuditTimestamp string
}

// AuditService defines the primary port for forensic queries over the
// audit trail.
type AuditService interface {
	// ListEvents retrieves the most recent events matching an event
	// name prefix, newest first.
	ListEvents(ctx context.Context, prefix string, limit int) ([]*AuditEvent, error)
}

// AuditEvent is the caller-facing view of one audit trail entry.
type AuditEvent struct {
	ID        string
	EventName string
	ThreadID  string
	StageID   string
	Payload   map[string]any
	CreatedAt string
}
