package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	coreprogress "github.com/example/stagehand/internal/core/progress"
	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

// ProgressServiceImpl implements the ProgressService interface: the thin
// entry point used by external executors that already hold their own
// claim and report outcomes incrementally.
type ProgressServiceImpl struct {
	progressRepo secondary.ProgressRepository
	stageRepo    secondary.StageRepository
	authorizer   secondary.Authorizer
	audit        *auditTrail
}

// NewProgressService creates a new ProgressService with injected dependencies.
func NewProgressService(progressRepo secondary.ProgressRepository, stageRepo secondary.StageRepository, authorizer secondary.Authorizer, auditRepo secondary.AuditRepository) *ProgressServiceImpl {
	return &ProgressServiceImpl{
		progressRepo: progressRepo,
		stageRepo:    stageRepo,
		authorizer:   authorizer,
		audit:        newAuditTrail(auditRepo),
	}
}

func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &primary.ValidationError{Field: field, Reason: "must be RFC3339"}
	}
	return t, nil
}

// ReportProgress upserts the progress row for a (thread, stage) pair.
// Every branch leaves exactly one audit event: recorded, dry-run,
// validation failure, unknown stage, or rejected stale write.
func (s *ProgressServiceImpl) ReportProgress(ctx context.Context, req primary.ReportProgressRequest) (*primary.ReportProgressResponse, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}

	if req.ThreadID == "" {
		s.audit.record(ctx, models.EventProgressInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": "thread_id is required",
		})
		return nil, &primary.ValidationError{Field: "thread_id", Reason: "must not be empty"}
	}
	if req.StageID == "" {
		s.audit.record(ctx, models.EventProgressInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": "stage_id is required",
		})
		return nil, &primary.ValidationError{Field: "stage_id", Reason: "must not be empty"}
	}

	status, err := coreprogress.NormalizeStatus(req.Status)
	if err != nil {
		s.audit.record(ctx, models.EventProgressInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": err.Error(),
			"status": req.Status,
		})
		return nil, &primary.ValidationError{Field: "status", Reason: err.Error()}
	}

	startedAt, err := parseTimestamp("started_at", req.StartedAt)
	if err != nil {
		s.audit.record(ctx, models.EventProgressInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": err.Error(),
		})
		return nil, err
	}
	completedAt, err := parseTimestamp("completed_at", req.CompletedAt)
	if err != nil {
		s.audit.record(ctx, models.EventProgressInvalid, req.ThreadID, req.StageID, map[string]any{
			"reason": err.Error(),
		})
		return nil, err
	}

	// Progress may only be reported against registered stages; an
	// unknown stage is an audited rejection, not a silent insert.
	exists, err := s.stageRepo.Exists(ctx, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate stage: %w", err)
	}
	if !exists {
		s.audit.record(ctx, models.EventProgressStageNotFound, req.ThreadID, req.StageID, map[string]any{
			"status": status,
		})
		return nil, &primary.NotFoundError{Kind: "stage", ID: req.StageID}
	}

	if req.DryRun {
		s.audit.record(ctx, models.EventProgressDryRun, req.ThreadID, req.StageID, map[string]any{
			"status":  status,
			"dry_run": true,
		})
		return &primary.ReportProgressResponse{DryRun: true}, nil
	}

	record := &secondary.ProgressRecord{
		ID:           uuid.NewString(),
		ThreadID:     req.ThreadID,
		StageID:      req.StageID,
		Status:       status,
		AgentID:      req.AgentID,
		ClaimID:      req.ClaimID,
		StartedAt:    req.StartedAt,
		CompletedAt:  req.CompletedAt,
		InputData:    req.InputData,
		OutputData:   req.OutputData,
		StateUpdate:  req.StateUpdate,
		ErrorMessage: req.ErrorMessage,
		ErrorStack:   req.ErrorStack,
	}
	if d, ok := coreprogress.DeriveDuration(req.DurationMS, startedAt, completedAt); ok {
		record.DurationMS = d
	}

	applied, err := s.progressRepo.Upsert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record progress: %w", err)
	}

	current, err := s.progressRepo.Get(ctx, req.ThreadID, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}

	if !applied {
		currentStatus := ""
		if current != nil {
			currentStatus = current.Status
		}
		s.audit.record(ctx, models.EventProgressStaleRejected, req.ThreadID, req.StageID, map[string]any{
			"incoming_status": status,
			"current_status":  currentStatus,
		})
		return nil, &primary.StaleWriteError{
			ThreadID: req.ThreadID,
			StageID:  req.StageID,
			Current:  currentStatus,
			Incoming: status,
		}
	}

	s.audit.record(ctx, models.EventProgressRecorded, req.ThreadID, req.StageID, map[string]any{
		"status":      current.Status,
		"agent_id":    current.AgentID,
		"duration_ms": current.DurationMS,
	})

	return &primary.ReportProgressResponse{Progress: recordToProgress(current)}, nil
}

// GetProgress retrieves the row for a pair, or nil when never attempted.
func (s *ProgressServiceImpl) GetProgress(ctx context.Context, threadID, stageID string) (*primary.Progress, error) {
	record, err := s.progressRepo.Get(ctx, threadID, stageID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return recordToProgress(record), nil
}

// AggregateByStatus returns the per-stage status histogram for a thread.
func (s *ProgressServiceImpl) AggregateByStatus(ctx context.Context, threadID string) (map[string]map[string]int, error) {
	if threadID == "" {
		return nil, &primary.ValidationError{Field: "thread_id", Reason: "must not be empty"}
	}
	return s.progressRepo.CountByStatus(ctx, []string{threadID})
}

// Ensure ProgressServiceImpl implements the interface
var _ primary.ProgressService = (*ProgressServiceImpl)(nil)
