// Package primary defines the primary ports (driving interfaces) for
// stagehand: the request/response actions callers invoke, plus the typed
// errors callers are expected to discriminate on.
package primary

import "fmt"

// ValidationError reports bad or missing request input. It is rejected
// synchronously and never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a reference to an entity that is not registered.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StaleWriteError reports a progress write that would regress a terminal
// status. The prior terminal state is preserved.
type StaleWriteError struct {
	ThreadID string
	StageID  string
	Current  string
	Incoming string
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write for %s/%s: %s would regress %s",
		e.ThreadID, e.StageID, e.Incoming, e.Current)
}

// UnauthorizedError reports a failed caller-identity check. It is raised
// before any claim, progress, or audit write.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}
