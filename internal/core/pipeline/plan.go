// Package pipeline contains the pure orchestration rules: plan
// resolution, per-stage outcomes, and the halting/overall-status logic.
package pipeline

import "github.com/example/stagehand/internal/core/stage"

// Stage outcome constants for a single pipeline run.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeTimeout   = "timeout"
)

// Pipeline-level status constants.
const (
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
	StatusPartiallySkipped = "partially_skipped"
)

// StageResult is one entry in the ordered result list of a run.
type StageResult struct {
	StageID    string
	Outcome    string
	Reason     string
	DurationMS int64
}

// ResolvePlan orders the active stages by position (ties broken by ID)
// and drops any stage in the skip set. Skipped-by-request stages do not
// appear in the run result at all.
func ResolvePlan(defs []stage.Definition, skipStages []string) []stage.Definition {
	skip := make(map[string]bool, len(skipStages))
	for _, id := range skipStages {
		skip[id] = true
	}

	var plan []stage.Definition
	for _, def := range defs {
		if !def.IsActive || skip[def.ID] {
			continue
		}
		plan = append(plan, def)
	}
	stage.SortOrdered(plan)
	return plan
}

// ShouldHalt reports whether a stage outcome stops the rest of the run.
// Only a failing (or timed out) required stage halts; optional failures
// are recorded and execution continues.
func ShouldHalt(def stage.Definition, outcome string) bool {
	if !def.IsRequired {
		return false
	}
	return outcome == OutcomeFailed || outcome == OutcomeTimeout
}

// OverallStatus derives the pipeline-level status from the ordered stage
// results. Any halt is a failure; a clean run with skips is
// partially_skipped; otherwise completed.
func OverallStatus(results []StageResult, halted bool) string {
	if halted {
		return StatusFailed
	}
	for _, r := range results {
		if r.Outcome == OutcomeSkipped {
			return StatusPartiallySkipped
		}
	}
	return StatusCompleted
}
