// Package app implements the primary ports by composing the core guards
// with the repository adapters.
package app

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/example/stagehand/internal/ports/secondary"
)

// auditTrail is the shared best-effort audit writer. Every branch of
// every orchestration operation goes through record, so the trail stays
// the single reconstructable history of what happened. An append failure
// is logged and swallowed: audit-write failure must never mask the
// outcome of the operation it describes.
type auditTrail struct {
	repo secondary.AuditRepository
}

func newAuditTrail(repo secondary.AuditRepository) *auditTrail {
	return &auditTrail{repo: repo}
}

// record appends one event. threadID and stageID are carried redundantly
// in dedicated columns and in the payload for queryability.
func (a *auditTrail) record(ctx context.Context, eventName, threadID, stageID string, payload map[string]any) {
	if a == nil || a.repo == nil {
		return
	}

	full := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		full[k] = v
	}
	if threadID != "" {
		full["thread_id"] = threadID
	}
	if stageID != "" {
		full["stage_id"] = stageID
		full["stage"] = stageID
	}

	err := a.repo.Append(ctx, &secondary.AuditRecord{
		ID:        uuid.NewString(),
		EventName: eventName,
		ThreadID:  threadID,
		StageID:   stageID,
		Payload:   full,
	})
	if err != nil {
		log.Printf("audit append failed for %s: %v", eventName, err)
	}
}
