package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/example/stagehand/internal/ports/secondary"
)

// ScriptHandler runs the command named by the stage config key "command"
// with the handler request on stdin as JSON. Stdout, when it parses as a
// JSON object, becomes the stage output; otherwise it is wrapped under
// "stdout". A non-zero exit is a handler error. Cancellation and
// timeouts propagate through exec.CommandContext.
type ScriptHandler struct{}

// NewScriptHandler creates a script handler.
func NewScriptHandler() *ScriptHandler {
	return &ScriptHandler{}
}

// Execute runs the configured command.
func (h *ScriptHandler) Execute(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
	command, _ := req.Config["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("stage %s: script handler requires config key %q", req.StageID, "command")
	}

	stdin, err := json.Marshal(map[string]any{
		"thread_id": req.ThreadID,
		"stage_id":  req.StageID,
		"config":    req.Config,
		"state":     req.PriorState,
		"input":     req.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: failed to encode handler input: %w", req.StageID, err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stage %s: command failed: %w: %s", req.StageID, err, stderr.String())
	}

	var output map[string]any
	if jsonErr := json.Unmarshal(stdout.Bytes(), &output); jsonErr != nil || output == nil {
		output = map[string]any{"stdout": stdout.String()}
	}

	return &secondary.HandlerResult{
		Output:      output,
		StateUpdate: map[string]any{"last_stage": req.StageID},
	}, nil
}
