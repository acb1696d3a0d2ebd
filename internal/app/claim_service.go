package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

// ClaimServiceImpl implements the ClaimService interface. It owns no
// locking of its own: mutual exclusion is entirely the claim store's
// atomic conditional insert, so it holds across processes.
type ClaimServiceImpl struct {
	claimRepo  secondary.ClaimRepository
	stageRepo  secondary.StageRepository
	authorizer secondary.Authorizer
	audit      *auditTrail
}

// NewClaimService creates a new ClaimService with injected dependencies.
func NewClaimService(claimRepo secondary.ClaimRepository, stageRepo secondary.StageRepository, authorizer secondary.Authorizer, auditRepo secondary.AuditRepository) *ClaimServiceImpl {
	return &ClaimServiceImpl{
		claimRepo:  claimRepo,
		stageRepo:  stageRepo,
		authorizer: authorizer,
		audit:      newAuditTrail(auditRepo),
	}
}

// AcquireClaim atomically acquires a (thread, stage) pair for an
// executor. Contention comes back as AlreadyClaimed in the response;
// waiting or retrying is the caller's policy, never this service's.
func (s *ClaimServiceImpl) AcquireClaim(ctx context.Context, req primary.AcquireClaimRequest) (*primary.AcquireClaimResponse, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}

	if req.ThreadID == "" || req.StageID == "" || req.ExecutorID == "" {
		s.audit.record(ctx, models.EventClaimInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": "thread_id, stage_id and executor_id are required",
		})
		return nil, &primary.ValidationError{Field: "claim", Reason: "thread_id, stage_id and executor_id are required"}
	}

	exists, err := s.stageRepo.Exists(ctx, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate stage: %w", err)
	}
	if !exists {
		s.audit.record(ctx, models.EventClaimStageNotFound, req.ThreadID, req.StageID, nil)
		return nil, &primary.NotFoundError{Kind: "stage", ID: req.StageID}
	}

	record := &secondary.ClaimRecord{
		ID:         uuid.NewString(),
		ThreadID:   req.ThreadID,
		StageID:    req.StageID,
		ExecutorID: req.ExecutorID,
		Metadata:   req.Metadata,
	}

	conflict, err := s.claimRepo.Acquire(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire claim: %w", err)
	}
	if conflict != nil {
		s.audit.record(ctx, models.EventClaimContended, req.ThreadID, req.StageID, map[string]any{
			"holder":    conflict.ExecutorID,
			"claim_id":  conflict.ID,
			"contender": req.ExecutorID,
		})
		return &primary.AcquireClaimResponse{
			AlreadyClaimed: true,
			Holder:         conflict.ExecutorID,
			Claim:          recordToClaim(conflict),
		}, nil
	}

	created, err := s.claimRepo.GetByID(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch acquired claim: %w", err)
	}

	s.audit.record(ctx, models.EventClaimAcquired, req.ThreadID, req.StageID, map[string]any{
		"claim_id":    created.ID,
		"executor_id": created.ExecutorID,
	})

	return &primary.AcquireClaimResponse{Claim: recordToClaim(created)}, nil
}

// ReleaseClaim moves a claim to a terminal outcome. Idempotent: an
// already-released claim comes back in its stored terminal state.
func (s *ClaimServiceImpl) ReleaseClaim(ctx context.Context, req primary.ReleaseClaimRequest) (*primary.Claim, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}

	if req.Outcome != models.ClaimStatusCompleted && req.Outcome != models.ClaimStatusFailed {
		s.audit.record(ctx, models.EventClaimInvalid, "", "", map[string]any{
			"claim_id": req.ClaimID,
			"reason":   fmt.Sprintf("invalid outcome %q", req.Outcome),
		})
		return nil, &primary.ValidationError{Field: "outcome", Reason: "must be completed or failed"}
	}

	released, err := s.claimRepo.Release(ctx, req.ClaimID, req.Outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to release claim: %w", err)
	}
	if released == nil {
		s.audit.record(ctx, models.EventClaimNotFound, "", "", map[string]any{"claim_id": req.ClaimID})
		return nil, &primary.NotFoundError{Kind: "claim", ID: req.ClaimID}
	}

	s.audit.record(ctx, models.EventClaimReleased, released.ThreadID, released.StageID, map[string]any{
		"claim_id": released.ID,
		"status":   released.Status,
	})

	return recordToClaim(released), nil
}

// ApproveClaim marks the claim approved by review. Approval is a gate
// independent of execution status; a claim can be executing while
// awaiting approval.
func (s *ClaimServiceImpl) ApproveClaim(ctx context.Context, claimID string) (*primary.Claim, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}

	approved, err := s.claimRepo.Approve(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve claim: %w", err)
	}
	if approved == nil {
		s.audit.record(ctx, models.EventClaimNotFound, "", "", map[string]any{"claim_id": claimID})
		return nil, &primary.NotFoundError{Kind: "claim", ID: claimID}
	}

	s.audit.record(ctx, models.EventClaimApproved, approved.ThreadID, approved.StageID, map[string]any{
		"claim_id": approved.ID,
	})

	return recordToClaim(approved), nil
}

// GetActiveClaim retrieves the active claim for a pair, or nil.
func (s *ClaimServiceImpl) GetActiveClaim(ctx context.Context, threadID, stageID string) (*primary.Claim, error) {
	record, err := s.claimRepo.GetActive(ctx, threadID, stageID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return recordToClaim(record), nil
}

// Ensure ClaimServiceImpl implements the interface
var _ primary.ClaimService = (*ClaimServiceImpl)(nil)
