package app

import (
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

func recordToStage(r *secondary.StageRecord) *primary.Stage {
	return &primary.Stage{
		ID:           r.ID,
		Position:     r.Position,
		IsActive:     r.IsActive,
		IsRequired:   r.IsRequired,
		Dependencies: r.Dependencies,
		Config:       r.Config,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func recordToClaim(r *secondary.ClaimRecord) *primary.Claim {
	return &primary.Claim{
		ID:           r.ID,
		ThreadID:     r.ThreadID,
		StageID:      r.StageID,
		ExecutorID:   r.ExecutorID,
		Status:       r.Status,
		ReviewStatus: r.ReviewStatus,
		Metadata:     r.Metadata,
		AcquiredAt:   r.AcquiredAt,
		ReleasedAt:   r.ReleasedAt,
	}
}

func recordToProgress(r *secondary.ProgressRecord) *primary.Progress {
	return &primary.Progress{
		ID:           r.ID,
		ThreadID:     r.ThreadID,
		StageID:      r.StageID,
		Status:       r.Status,
		AgentID:      r.AgentID,
		ClaimID:      r.ClaimID,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		DurationMS:   r.DurationMS,
		InputData:    r.InputData,
		OutputData:   r.OutputData,
		StateUpdate:  r.StateUpdate,
		ErrorMessage: r.ErrorMessage,
		ErrorStack:   r.ErrorStack,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func recordToAuditEvent(r *secondary.AuditRecord) *primary.AuditEvent {
	return &primary.AuditEvent{
		ID:        r.ID,
		EventName: r.EventName,
		ThreadID:  r.ThreadID,
		StageID:   r.StageID,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
	}
}
