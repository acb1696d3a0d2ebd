package primary

import (
	"context"
	"time"
)

// PipelineService defines the primary port for full pipeline runs.
type PipelineService interface {
	// Run executes the eligible stages for a thread in dependency and
	// position order. The run never blocks waiting for a contended
	// claim; contended stages are skipped for this run.
	Run(ctx context.Context, req RunPipelineRequest) (*PipelineRunResult, error)
}

// RunPipelineRequest contains parameters for a pipeline run.
type RunPipelineRequest struct {
	ThreadID string

	// DryRun walks the full plan without acquiring claims or writing
	// progress; audit events are still written, tagged as dry-run.
	DryRun bool

	// SkipStages removes stages from the plan entirely; they do not
	// appear in the result list.
	SkipStages []string

	// Force bypasses the dependency gate.
	Force bool

	// Input is the opaque message passed to every stage handler.
	Input map[string]any

	// StageTimeout bounds each handler invocation. Zero means no bound.
	StageTimeout time.Duration
}

// StageRunResult is one entry in the ordered result of a run.
type StageRunResult struct {
	StageID    string
	Outcome    string
	Reason     string
	DurationMS int64
}

// PipelineRunResult is the overall outcome of a run.
type PipelineRunResult struct {
	ThreadID string
	Status   string
	DryRun   bool
	Stages   []StageRunResult
}
