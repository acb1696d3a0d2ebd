package primary

import "context"

// ClaimService defines the primary port for the mutual-exclusion
// primitive: exclusive execution rights on a (thread, stage) pair.
type ClaimService interface {
	// AcquireClaim atomically acquires the pair for an executor.
	// Contention is an expected outcome, reported in the response, not
	// an error.
	AcquireClaim(ctx context.Context, req AcquireClaimRequest) (*AcquireClaimResponse, error)

	// ReleaseClaim moves a claim to a terminal outcome. Idempotent:
	// releasing an already-released claim returns its existing state.
	ReleaseClaim(ctx context.Context, req ReleaseClaimRequest) (*Claim, error)

	// ApproveClaim marks the claim approved by review, independent of
	// execution status.
	ApproveClaim(ctx context.Context, claimID string) (*Claim, error)

	// GetActiveClaim retrieves the active claim for a pair, or nil.
	GetActiveClaim(ctx context.Context, threadID, stageID string) (*Claim, error)
}

// Claim is the caller-facing view of a claim.
type Claim struct {
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

// AcquireClaimRequest contains parameters for acquiring a claim.
type AcquireClaimRequest struct {
	ThreadID   string
	StageID    string
	ExecutorID string
	Metadata   map[string]any
}

// AcquireClaimResponse reports either the new claim or the holder that
// already owns the pair.
type AcquireClaimResponse struct {
	Claim          *Claim
	AlreadyClaimed bool
	Holder         string
}

// ReleaseClaimRequest contains parameters for releasing a claim.
// Outcome must be "completed" or "failed".
type ReleaseClaimRequest struct {
	ClaimID string
	Outcome string
}
