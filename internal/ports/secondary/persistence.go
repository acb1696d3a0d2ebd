// Package secondary defines the secondary ports (driven adapters) for the
// application: persistence, stage handlers, and the external authorization
// gate. Implementations live in internal/adapters.
package secondary

import "context"

// StageRecord represents a stage definition as stored in persistence.
// Timestamps are RFC3339 strings.
type StageRecord struct {
	ID           string
	Position     int
	IsActive     bool
	IsRequired   bool
	Dependencies []string
	Config       map[string]any
	CreatedAt    string
	UpdatedAt    string
}

// StageRepository defines the secondary port for the stage catalog.
type StageRepository interface {
	// Create persists a new stage definition.
	Create(ctx context.Context, stage *StageRecord) error

	// Update overwrites the mutable fields of an existing definition.
	Update(ctx context.Context, stage *StageRecord) error

	// GetByID retrieves a stage definition. Returns nil, nil when the
	// stage is not registered.
	GetByID(ctx context.Context, id string) (*StageRecord, error)

	// List retrieves definitions ordered by position then ID.
	List(ctx context.Context, activeOnly bool) ([]*StageRecord, error)

	// Exists checks whether a stage is registered.
	Exists(ctx context.Context, id string) (bool, error)

	// Deactivate flips is_active off without deleting history.
	Deactivate(ctx context.Context, id string) error
}

// ClaimRecord represents a claim as stored in persistence.
type ClaimRecord struct {
	ID           string
	ThreadID     string
	StageID      string
	ExecutorID   string
	Status       string
	ReviewStatus string
	Metadata     map[string]any
	AcquiredAt   string
	ReleasedAt   string
}

// ClaimRepository defines the secondary port for claims. The store itself
// enforces the one-active-claim-per-(thread, stage) invariant; Acquire
// must be a single atomic operation, never read-then-write.
type ClaimRepository interface {
	// Acquire inserts a new active claim. On contention it returns the
	// existing active claim as conflict (and no error); the caller
	// decides whether to wait, skip, or abort.
	Acquire(ctx context.Context, claim *ClaimRecord) (conflict *ClaimRecord, err error)

	// GetByID retrieves a claim. Returns nil, nil when unknown.
	GetByID(ctx context.Context, id string) (*ClaimRecord, error)

	// GetActive retrieves the active claim for a pair, or nil, nil.
	GetActive(ctx context.Context, threadID, stageID string) (*ClaimRecord, error)

	// Release moves an active claim to a terminal status and stamps
	// released_at. Releasing an already-released claim returns the
	// existing terminal record unchanged.
	Release(ctx context.Context, id, status string) (*ClaimRecord, error)

	// Approve sets the review status to approved and records the
	// approval time in metadata.
	Approve(ctx context.Context, id string) (*ClaimRecord, error)

	// LatestByStage returns the most recently acquired claim per stage,
	// optionally restricted to the given threads.
	LatestByStage(ctx context.Context, threadIDs []string) (map[string]*ClaimRecord, error)
}

// ProgressRecord represents a progress row as stored in persistence.
// There is exactly one row per (thread, stage) pair.
type ProgressRecord struct {
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

// ProgressRepository defines the secondary port for progress rows.
type ProgressRepository interface {
	// Upsert writes the row for (ThreadID, StageID), creating it on the
	// first attempt and overwriting on later ones. The store enforces
	// the monotonicity guard: applied is false when the write would
	// regress a terminal status, and the prior state is preserved.
	Upsert(ctx context.Context, rec *ProgressRecord) (applied bool, err error)

	// Get retrieves the row for a pair, or nil, nil when never attempted.
	Get(ctx context.Context, threadID, stageID string) (*ProgressRecord, error)

	// ListByThread retrieves all rows for a thread.
	ListByThread(ctx context.Context, threadID string) ([]*ProgressRecord, error)

	// CountByStatus aggregates current statuses per stage, optionally
	// restricted to the given threads. Shape: stage_id -> status -> count.
	CountByStatus(ctx context.Context, threadIDs []string) (map[string]map[string]int, error)
}

// AuditRecord represents an audit event as stored in persistence.
type AuditRecord struct {
	ID        string
	EventName string
	ThreadID  string
	StageID   string
	Payload   map[string]any
	CreatedAt string
}

// AuditRepository defines the secondary port for the append-only audit
// trail.
type AuditRepository interface {
	// Append durably writes one event. Events are never updated or
	// deleted.
	Append(ctx context.Context, event *AuditRecord) error

	// ListByPrefix retrieves the most recent events whose name starts
	// with prefix, newest first.
	ListByPrefix(ctx context.Context, prefix string, limit int) ([]*AuditRecord, error)

	// LastTimestampForStage returns the created_at of the most recent
	// event referencing a stage, or "" when none exists.
	LastTimestampForStage(ctx context.Context, stageID string) (string, error)
}
