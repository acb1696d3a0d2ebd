package handler

import (
	"context"

	"github.com/example/stagehand/internal/ports/secondary"
)

// EchoHandler is the default stage handler: it reflects the input back
// as output and records which stage ran in the state update. Useful for
// wiring checks and as the fallback for stages with no declared handler.
type EchoHandler struct{}

// NewEchoHandler creates an echo handler.
func NewEchoHandler() *EchoHandler {
	return &EchoHandler{}
}

// Execute reflects the request input.
func (h *EchoHandler) Execute(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output := map[string]any{
		"echo": req.Input,
	}
	return &secondary.HandlerResult{
		Output: output,
		StateUpdate: map[string]any{
			"last_stage": req.StageID,
		},
	}, nil
}
