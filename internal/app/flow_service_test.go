package app

import (
	"context"
	"testing"

	"github.com/example/stagehand/internal/ports/secondary"
)

func TestGetFlowView(t *testing.T) {
	stageRepo := newMockStageRepo()
	claimRepo := newMockClaimRepo()
	progressRepo := newMockProgressRepo()
	auditRepo := newMockAuditRepo()
	svc := NewFlowService(stageRepo, claimRepo, progressRepo, auditRepo)
	ctx := context.Background()

	stageRepo.addStage("greeting", 1, true)
	stageRepo.addStage("intent", 2, true, "greeting")
	stageRepo.addStage("retired", 9, false)
	if err := stageRepo.Deactivate(ctx, "retired"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	// greeting: attempted and completed; intent: claimed, no progress.
	if _, err := progressRepo.Upsert(ctx, &secondary.ProgressRecord{
		ID: "prog-001", ThreadID: "thread-001", StageID: "greeting", Status: "completed",
	}); err != nil {
		t.Fatalf("seed progress failed: %v", err)
	}
	if _, err := claimRepo.Acquire(ctx, &secondary.ClaimRecord{
		ID: "claim-001", ThreadID: "thread-001", StageID: "intent", ExecutorID: "exec-1",
	}); err != nil {
		t.Fatalf("seed claim failed: %v", err)
	}
	if err := auditRepo.Append(ctx, &secondary.AuditRecord{
		ID: "evt-001", EventName: "STAGE_PROGRESS.RECORDED", ThreadID: "thread-001", StageID: "greeting",
	}); err != nil {
		t.Fatalf("seed audit failed: %v", err)
	}

	entries, err := svc.GetFlowView(ctx, []string{"thread-001"})
	if err != nil {
		t.Fatalf("GetFlowView failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (active stages only), got %d", len(entries))
	}

	greeting, intent := entries[0], entries[1]
	if greeting.Stage.ID != "greeting" || intent.Stage.ID != "intent" {
		t.Fatalf("entries out of order: %s, %s", greeting.Stage.ID, intent.Stage.ID)
	}

	if greeting.ProgressCounts["completed"] != 1 {
		t.Errorf("greeting counts = %v, want completed=1", greeting.ProgressCounts)
	}
	if greeting.Claim != nil {
		t.Errorf("greeting claim = %+v, want none", greeting.Claim)
	}
	if greeting.LastAuditTimestamp == "" {
		t.Error("greeting should carry its last audit timestamp")
	}

	// intent is claimed-but-not-started: claim present, no progress,
	// no audit timestamp.
	if intent.Claim == nil || intent.Claim.ExecutorID != "exec-1" {
		t.Errorf("intent claim = %+v, want exec-1's claim", intent.Claim)
	}
	if len(intent.ProgressCounts) != 0 {
		t.Errorf("intent counts = %v, want empty", intent.ProgressCounts)
	}
	if intent.LastAuditTimestamp != "" {
		t.Errorf("intent timestamp = %q, want empty", intent.LastAuditTimestamp)
	}
}

func TestAuditService_ListEvents(t *testing.T) {
	auditRepo := newMockAuditRepo()
	svc := NewAuditService(auditRepo)
	ctx := context.Background()

	for i, name := range []string{"CLAIM.ACQUIRED", "CLAIM.RELEASED", "PIPELINE.STARTED"} {
		if err := auditRepo.Append(ctx, &secondary.AuditRecord{
			ID: string(rune('a' + i)), EventName: name,
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := svc.ListEvents(ctx, "CLAIM.", 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventName != "CLAIM.RELEASED" {
		t.Errorf("newest first: got %s", events[0].EventName)
	}
}
