// Package auth contains the default implementation of the authorization
// gate. Real deployments substitute their own collaborator; the contract
// is only a boolean decision evaluated before any orchestration write.
package auth

import (
	"context"

	"github.com/example/stagehand/internal/ctxutil"
	"github.com/example/stagehand/internal/ports/secondary"
)

// ExecutorAuthorizer accepts any call carrying a non-empty executor
// identity on the context. Failed checks are the collaborator's to log;
// the orchestrator never audits them.
type ExecutorAuthorizer struct{}

// NewExecutorAuthorizer creates the default authorizer.
func NewExecutorAuthorizer() *ExecutorAuthorizer {
	return &ExecutorAuthorizer{}
}

// Check validates the caller identity on the context.
func (a *ExecutorAuthorizer) Check(ctx context.Context) secondary.AuthDecision {
	if ctxutil.ExecutorFromContext(ctx) == "" {
		return secondary.AuthDecision{Valid: false, Error: "no executor identity on request"}
	}
	return secondary.AuthDecision{Valid: true}
}

// Ensure ExecutorAuthorizer implements the interface
var _ secondary.Authorizer = (*ExecutorAuthorizer)(nil)
