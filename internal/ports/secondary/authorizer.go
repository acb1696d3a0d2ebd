package secondary

import "context"

// AuthDecision is the outcome of the external caller-identity check.
type AuthDecision struct {
	Valid bool
	Error string
}

// Authorizer defines the secondary port for the authorization gate.
// Every mutating operation checks it before touching claim, progress, or
// audit state; a failed check short-circuits and is logged by the
// authorization collaborator itself, not audited here.
type Authorizer interface {
	Check(ctx context.Context) AuthDecision
}
