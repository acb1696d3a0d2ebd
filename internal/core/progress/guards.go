// Package progress contains the pure business logic for progress writes:
// status normalization, duration derivation, and the monotonicity guard
// that protects terminal states from stale retries.
package progress

import (
	"fmt"
	"time"
)

// ValidStatuses is the closed set of storable progress statuses.
// "done" is accepted at the boundary as an alias of "completed" and is
// normalized before storage.
var ValidStatuses = []string{
	"pending", "running", "completed", "failed", "skipped", "timeout", "paused",
}

// NormalizeStatus maps boundary aliases onto stored statuses and rejects
// anything outside the enumerated set. Unknown values are an error, never
// silently coerced.
func NormalizeStatus(status string) (string, error) {
	if status == "done" {
		return "completed", nil
	}
	for _, s := range ValidStatuses {
		if status == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid status %q (expected one of %v or done)", status, ValidStatuses)
}

// IsTerminal reports whether a stored status must not be regressed by a
// later-arriving write from the same attempt.
func IsTerminal(status string) bool {
	return status == "completed" || status == "failed"
}

// isRegressive reports whether an incoming status would move a row
// backwards if applied over a terminal one.
func isRegressive(status string) bool {
	return status == "running" || status == "pending"
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// CanApply evaluates the monotonicity rule: a terminal row (completed or
// failed) is never overwritten by a stale running/pending write arriving
// late. Replaying an identical terminal write is allowed (idempotency).
// currentStatus is empty when no row exists yet.
func CanApply(currentStatus, incomingStatus string) GuardResult {
	if currentStatus == "" {
		return GuardResult{Allowed: true}
	}
	if IsTerminal(currentStatus) && isRegressive(incomingStatus) {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("stale write: status %s would regress terminal status %s",
				incomingStatus, currentStatus),
		}
	}
	return GuardResult{Allowed: true}
}

// DeriveDuration returns the duration to store. An explicitly supplied
// duration wins; otherwise it is computed from the timestamps when both
// are present. Returns 0, false when no duration can be derived.
func DeriveDuration(durationMS int64, startedAt, completedAt time.Time) (int64, bool) {
	if durationMS > 0 {
		return durationMS, true
	}
	if !startedAt.IsZero() && !completedAt.IsZero() {
		return completedAt.Sub(startedAt).Milliseconds(), true
	}
	return 0, false
}
