package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	corepipeline "github.com/example/stagehand/internal/core/pipeline"
	"github.com/example/stagehand/internal/core/stage"
	"github.com/example/stagehand/internal/ctxutil"
	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

// PipelineServiceImpl implements the PipelineService interface: the
// orchestration loop that walks the stage plan for one thread. A single
// run is strictly sequential; concurrency safety across runs comes from
// the claim store's atomic insert and the progress store's guarded
// upsert, never from in-process locks.
type PipelineServiceImpl struct {
	stageRepo    secondary.StageRepository
	claimRepo    secondary.ClaimRepository
	progressRepo secondary.ProgressRepository
	resolver     secondary.HandlerResolver
	authorizer   secondary.Authorizer
	audit        *auditTrail
}

// NewPipelineService creates a new PipelineService with injected dependencies.
func NewPipelineService(
	stageRepo secondary.StageRepository,
	claimRepo secondary.ClaimRepository,
	progressRepo secondary.ProgressRepository,
	resolver secondary.HandlerResolver,
	authorizer secondary.Authorizer,
	auditRepo secondary.AuditRepository,
) *PipelineServiceImpl {
	return &PipelineServiceImpl{
		stageRepo:    stageRepo,
		claimRepo:    claimRepo,
		progressRepo: progressRepo,
		resolver:     resolver,
		authorizer:   authorizer,
		audit:        newAuditTrail(auditRepo),
	}
}

// Run executes the eligible stages for a thread in position order.
func (s *PipelineServiceImpl) Run(ctx context.Context, req primary.RunPipelineRequest) (*primary.PipelineRunResult, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}
	if req.ThreadID == "" {
		return nil, &primary.ValidationError{Field: "thread_id", Reason: "must not be empty"}
	}

	executorID := ctxutil.ExecutorFromContext(ctx)
	if executorID == "" {
		executorID = "pipeline"
	}

	records, err := s.stageRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	defs := make([]stage.Definition, len(records))
	configs := make(map[string]map[string]any, len(records))
	for i, r := range records {
		defs[i] = stage.Definition{
			ID:           r.ID,
			Position:     r.Position,
			IsActive:     r.IsActive,
			IsRequired:   r.IsRequired,
			Dependencies: r.Dependencies,
		}
		configs[r.ID] = r.Config
	}
	plan := corepipeline.ResolvePlan(defs, req.SkipStages)

	s.audit.record(ctx, models.EventPipelineStarted, req.ThreadID, "", map[string]any{
		"dry_run":     req.DryRun,
		"force":       req.Force,
		"skip_stages": req.SkipStages,
		"plan_size":   len(plan),
	})

	statusByStage, state, err := s.loadThreadState(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	var results []corepipeline.StageResult
	halted := false

	for _, def := range plan {
		result := s.runStage(ctx, req, def, configs[def.ID], executorID, statusByStage, state)
		results = append(results, result)
		statusByStage[def.ID] = outcomeToStatus(result.Outcome)

		if corepipeline.ShouldHalt(def, result.Outcome) {
			s.audit.record(ctx, models.EventPipelineFailed, req.ThreadID, def.ID, map[string]any{
				"dry_run": req.DryRun,
				"reason":  result.Reason,
			})
			halted = true
			break
		}
	}

	status := corepipeline.OverallStatus(results, halted)
	if !halted {
		s.audit.record(ctx, models.EventPipelineCompleted, req.ThreadID, "", map[string]any{
			"dry_run": req.DryRun,
			"status":  status,
		})
	}

	out := &primary.PipelineRunResult{
		ThreadID: req.ThreadID,
		Status:   status,
		DryRun:   req.DryRun,
	}
	for _, r := range results {
		out.Stages = append(out.Stages, primary.StageRunResult{
			StageID:    r.StageID,
			Outcome:    r.Outcome,
			Reason:     r.Reason,
			DurationMS: r.DurationMS,
		})
	}
	return out, nil
}

// loadThreadState reads the thread's existing progress rows to seed the
// dependency gate and the accumulated handler state.
func (s *PipelineServiceImpl) loadThreadState(ctx context.Context, threadID string) (map[string]string, map[string]any, error) {
	rows, err := s.progressRepo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load thread progress: %w", err)
	}

	statusByStage := make(map[string]string, len(rows))
	state := map[string]any{}
	for _, r := range rows {
		statusByStage[r.StageID] = r.Status
		if r.Status == models.ProgressStatusCompleted {
			for k, v := range r.StateUpdate {
				state[k] = v
			}
		}
	}
	return statusByStage, state, nil
}

// runStage drives one stage through gate, claim, execute, record,
// release, audit. It never returns an error: every failure mode becomes
// a stage outcome so the loop's halting logic stays in one place.
func (s *PipelineServiceImpl) runStage(
	ctx context.Context,
	req primary.RunPipelineRequest,
	def stage.Definition,
	config map[string]any,
	executorID string,
	statusByStage map[string]string,
	state map[string]any,
) corepipeline.StageResult {
	// Dependency gate.
	unmet := stage.UnmetDependencies(stage.DependencyContext{
		Stage:         def,
		StatusByStage: statusByStage,
		Force:         req.Force,
	})
	if len(unmet) > 0 {
		reason := fmt.Sprintf("unmet dependency: %v", unmet)
		if !req.DryRun {
			s.writeProgress(ctx, req.ThreadID, def.ID, &secondary.ProgressRecord{
				Status:       models.ProgressStatusSkipped,
				AgentID:      executorID,
				ErrorMessage: reason,
			})
		}
		s.audit.record(ctx, models.EventStageSkipped, req.ThreadID, def.ID, map[string]any{
			"dry_run": req.DryRun,
			"reason":  "unmet dependency",
			"missing": unmet,
		})
		return corepipeline.StageResult{StageID: def.ID, Outcome: corepipeline.OutcomeSkipped, Reason: reason}
	}

	// Claim. Dry runs take no real claim.
	var claimID string
	if !req.DryRun {
		claim := &secondary.ClaimRecord{
			ID:         uuid.NewString(),
			ThreadID:   req.ThreadID,
			StageID:    def.ID,
			ExecutorID: executorID,
		}
		conflict, err := s.claimRepo.Acquire(ctx, claim)
		if err != nil {
			s.audit.record(ctx, models.EventStageSkipped, req.ThreadID, def.ID, map[string]any{
				"reason": "claim acquisition failed",
				"error":  err.Error(),
			})
			return corepipeline.StageResult{StageID: def.ID, Outcome: corepipeline.OutcomeSkipped, Reason: "claim acquisition failed"}
		}
		if conflict != nil {
			s.audit.record(ctx, models.EventClaimContended, req.ThreadID, def.ID, map[string]any{
				"holder":    conflict.ExecutorID,
				"contender": executorID,
			})
			return corepipeline.StageResult{
				StageID: def.ID,
				Outcome: corepipeline.OutcomeSkipped,
				Reason:  fmt.Sprintf("already claimed by %s", conflict.ExecutorID),
			}
		}
		claimID = claim.ID
	}

	// Execute the opaque handler, bounded by the caller's timeout.
	handler := s.resolver.Resolve(def.ID, config)
	execCtx := ctx
	var cancel context.CancelFunc
	if req.StageTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, req.StageTimeout)
		defer cancel()
	}

	startedAt := time.Now().UTC()
	handlerResult, handlerErr := handler.Execute(execCtx, secondary.HandlerRequest{
		ThreadID:   req.ThreadID,
		StageID:    def.ID,
		Config:     config,
		PriorState: state,
		Input:      req.Input,
	})
	completedAt := time.Now().UTC()
	durationMS := completedAt.Sub(startedAt).Milliseconds()
	if handlerResult == nil {
		handlerResult = &secondary.HandlerResult{}
	}

	outcome := corepipeline.OutcomeCompleted
	progressStatus := models.ProgressStatusCompleted
	reason := ""
	if handlerErr != nil {
		outcome = corepipeline.OutcomeFailed
		progressStatus = models.ProgressStatusFailed
		reason = handlerErr.Error()
		if errors.Is(handlerErr, context.DeadlineExceeded) {
			outcome = corepipeline.OutcomeTimeout
			progressStatus = models.ProgressStatusTimeout
			reason = fmt.Sprintf("stage handler exceeded %s", req.StageTimeout)
		}
	}

	// Record.
	if !req.DryRun {
		record := &secondary.ProgressRecord{
			Status:      progressStatus,
			AgentID:     executorID,
			ClaimID:     claimID,
			StartedAt:   startedAt.Format(time.RFC3339),
			CompletedAt: completedAt.Format(time.RFC3339),
			DurationMS:  durationMS,
			InputData:   req.Input,
		}
		if handlerErr != nil {
			record.ErrorMessage = reason
			record.ErrorStack = fmt.Sprintf("%+v", handlerErr)
		} else {
			record.OutputData = handlerResult.Output
			record.StateUpdate = handlerResult.StateUpdate
		}
		s.writeProgress(ctx, req.ThreadID, def.ID, record)

		// Release with matching outcome.
		releaseStatus := models.ClaimStatusCompleted
		if handlerErr != nil {
			releaseStatus = models.ClaimStatusFailed
		}
		if _, err := s.claimRepo.Release(ctx, claimID, releaseStatus); err != nil {
			s.audit.record(ctx, models.EventClaimNotFound, req.ThreadID, def.ID, map[string]any{
				"claim_id": claimID,
				"error":    err.Error(),
			})
		} else {
			s.audit.record(ctx, models.EventClaimReleased, req.ThreadID, def.ID, map[string]any{
				"claim_id": claimID,
				"status":   releaseStatus,
			})
		}
	}

	// Fold the stage's state update into the accumulated run state.
	if handlerErr == nil {
		for k, v := range handlerResult.StateUpdate {
			state[k] = v
		}
	}

	// Audit the outcome regardless of what recording did.
	eventName := models.EventStageCompleted
	switch outcome {
	case corepipeline.OutcomeFailed:
		eventName = models.EventStageFailed
	case corepipeline.OutcomeTimeout:
		eventName = models.EventStageTimeout
	}
	s.audit.record(ctx, eventName, req.ThreadID, def.ID, map[string]any{
		"dry_run":     req.DryRun,
		"duration_ms": durationMS,
		"error":       reason,
	})

	return corepipeline.StageResult{StageID: def.ID, Outcome: outcome, Reason: reason, DurationMS: durationMS}
}

// writeProgress upserts a stage's progress row during a run. A stale
// rejection here means an external executor got a newer terminal state
// in first; the run records the discrepancy and moves on.
func (s *PipelineServiceImpl) writeProgress(ctx context.Context, threadID, stageID string, record *secondary.ProgressRecord) {
	record.ID = uuid.NewString()
	record.ThreadID = threadID
	record.StageID = stageID

	applied, err := s.progressRepo.Upsert(ctx, record)
	if err != nil {
		s.audit.record(ctx, models.EventProgressInvalid, threadID, stageID, map[string]any{
			"reason": err.Error(),
		})
		return
	}
	if !applied {
		s.audit.record(ctx, models.EventProgressStaleRejected, threadID, stageID, map[string]any{
			"incoming_status": record.Status,
		})
	}
}

func outcomeToStatus(outcome string) string {
	switch outcome {
	case corepipeline.OutcomeCompleted:
		return models.ProgressStatusCompleted
	case corepipeline.OutcomeFailed:
		return models.ProgressStatusFailed
	case corepipeline.OutcomeTimeout:
		return models.ProgressStatusTimeout
	default:
		return models.ProgressStatusSkipped
	}
}

// Ensure PipelineServiceImpl implements the interface
var _ primary.PipelineService = (*PipelineServiceImpl)(nil)
