package models

import "time"

// AuditEvent is one append-only entry in the orchestration audit trail.
// Events are never updated or deleted; the trail is the only place
// "what happened, in order" can be reconstructed.
type AuditEvent struct {
	ID        string
	EventName string
	ThreadID  string
	StageID   string
	Payload   map[string]any
	CreatedAt time.Time
}

// Audit event names, dot-namespaced by subsystem.
const (
	EventProgressRecorded      = "STAGE_PROGRESS.RECORDED"
	EventProgressDryRun        = "STAGE_PROGRESS.DRY_RUN"
	EventProgressInvalid       = "STAGE_PROGRESS.VALIDATION_FAILED"
	EventProgressStageNotFound = "STAGE_PROGRESS.STAGE_NOT_FOUND"
	EventProgressStaleRejected = "STAGE_PROGRESS.STALE_WRITE_REJECTED"

	EventClaimAcquired      = "CLAIM.ACQUIRED"
	EventClaimContended     = "CLAIM.CONTENDED"
	EventClaimReleased      = "CLAIM.RELEASED"
	EventClaimApproved      = "CLAIM.APPROVED"
	EventClaimNotFound      = "CLAIM.NOT_FOUND"
	EventClaimInvalid       = "CLAIM.VALIDATION_FAILED"
	EventClaimStageNotFound = "CLAIM.STAGE_NOT_FOUND"

	EventPipelineStarted   = "PIPELINE.STARTED"
	EventPipelineCompleted = "PIPELINE.COMPLETED"
	EventPipelineFailed    = "PIPELINE.EXECUTION_FAILED"
	EventStageCompleted    = "PIPELINE.STAGE_COMPLETED"
	EventStageFailed       = "PIPELINE.STAGE_FAILED"
	EventStageSkipped      = "PIPELINE.STAGE_SKIPPED"
	EventStageTimeout      = "PIPELINE.STAGE_TIMEOUT"

	EventStageRegistered  = "REGISTRY.STAGE_REGISTERED"
	EventStageUpdated     = "REGISTRY.STAGE_UPDATED"
	EventStageDeactivated = "REGISTRY.STAGE_DEACTIVATED"
)
