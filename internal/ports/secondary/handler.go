package secondary

import "context"

// HandlerRequest carries everything a stage handler may need: the stage's
// declared config, the accumulated prior state, and the current input.
// All three maps are opaque to the orchestrator.
type HandlerRequest struct {
	ThreadID   string
	StageID    string
	Config     map[string]any
	PriorState map[string]any
	Input      map[string]any
}

// HandlerResult is what a successful stage execution produces.
type HandlerResult struct {
	Output      map[string]any
	StateUpdate map[string]any
}

// StageHandler defines the secondary port for the opaque per-stage
// business logic. The orchestrator knows nothing about what a stage
// computes; it only supplies config/state/input and records the result.
// Implementations must honor ctx cancellation: the executor wraps the
// call in the caller-supplied timeout.
type StageHandler interface {
	Execute(ctx context.Context, req HandlerRequest) (*HandlerResult, error)
}

// HandlerResolver maps a stage to the handler that executes it.
type HandlerResolver interface {
	// Resolve returns the handler for a stage, or nil when no handler
	// is registered for it.
	Resolve(stageID string, config map[string]any) StageHandler
}
