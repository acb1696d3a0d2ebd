package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/stagehand/internal/ctxutil"
	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

type pipelineFixture struct {
	svc          *PipelineServiceImpl
	stageRepo    *mockStageRepo
	claimRepo    *mockClaimRepo
	progressRepo *mockProgressRepo
	auditRepo    *mockAuditRepo
	resolver     *mockResolver
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		stageRepo:    newMockStageRepo(),
		claimRepo:    newMockClaimRepo(),
		progressRepo: newMockProgressRepo(),
		auditRepo:    newMockAuditRepo(),
		resolver:     newMockResolver(),
	}
	f.svc = NewPipelineService(f.stageRepo, f.claimRepo, f.progressRepo, f.resolver, allowAllAuthorizer{}, f.auditRepo)
	return f
}

// seedDefaultPipeline registers the four-stage message pipeline:
// greeting and intent required, enrichment optional, plan required.
func (f *pipelineFixture) seedDefaultPipeline() {
	f.stageRepo.addStage("greeting", 1, true)
	f.stageRepo.addStage("intent", 2, true, "greeting")
	f.stageRepo.addStage("enrichment", 3, false, "intent")
	f.stageRepo.addStage("plan", 4, true, "intent")
}

func stageOutcomes(result *primary.PipelineRunResult) []string {
	var out []string
	for _, s := range result.Stages {
		out = append(out, s.StageID+":"+s.Outcome)
	}
	return out
}

func TestPipelineRun_HappyPath(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	ctx := ctxutil.WithExecutorID(context.Background(), "exec-1")

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{
		ThreadID: "thread-001",
		Input:    map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != "completed" {
		t.Errorf("Status = %s, want completed", result.Status)
	}
	want := []string{"greeting:completed", "intent:completed", "enrichment:completed", "plan:completed"}
	got := stageOutcomes(result)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", got, want)
	}

	// Each stage got a progress row and a released claim.
	for _, id := range []string{"greeting", "intent", "enrichment", "plan"} {
		row, _ := f.progressRepo.Get(ctx, "thread-001", id)
		if row == nil || row.Status != "completed" {
			t.Errorf("progress for %s = %+v, want completed", id, row)
		}
		active, _ := f.claimRepo.GetActive(ctx, "thread-001", id)
		if active != nil {
			t.Errorf("claim for %s still active after run", id)
		}
	}

	if got := f.auditRepo.count(models.EventPipelineStarted); got != 1 {
		t.Errorf("started events = %d, want 1", got)
	}
	if got := f.auditRepo.count(models.EventPipelineCompleted); got != 1 {
		t.Errorf("completed events = %d, want 1", got)
	}
	if got := f.auditRepo.count(models.EventStageCompleted); got != 4 {
		t.Errorf("stage-completed events = %d, want 4", got)
	}
}

func TestPipelineRun_RequiredStageFailureHalts(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	f.resolver.set("intent", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		return nil, errors.New("classifier unavailable")
	})
	ctx := context.Background()

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != "failed" {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	want := []string{"greeting:completed", "intent:failed"}
	got := stageOutcomes(result)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v (later stages never attempted)", got, want)
	}

	// The failed stage's claim is released with a failed outcome.
	latest, _ := f.claimRepo.LatestByStage(ctx, []string{"thread-001"})
	if c := latest["intent"]; c == nil || c.Status != "failed" {
		t.Errorf("intent claim = %+v, want released failed", c)
	}

	// Nothing downstream was touched.
	for _, id := range []string{"enrichment", "plan"} {
		if row, _ := f.progressRepo.Get(ctx, "thread-001", id); row != nil {
			t.Errorf("progress for %s = %+v, want none", id, row)
		}
	}

	if got := f.auditRepo.count(models.EventPipelineFailed); got != 1 {
		t.Errorf("execution-failed events = %d, want 1", got)
	}
	if got := f.auditRepo.count(models.EventPipelineCompleted); got != 0 {
		t.Errorf("completed events = %d, want 0", got)
	}
}

func TestPipelineRun_OptionalStageFailureContinues(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	f.resolver.set("enrichment", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		return nil, errors.New("enrichment backend down")
	})

	result, err := f.svc.Run(context.Background(), primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != "completed" {
		t.Errorf("Status = %s, want completed (optional failure recorded, not fatal)", result.Status)
	}
	want := []string{"greeting:completed", "intent:completed", "enrichment:failed", "plan:completed"}
	got := stageOutcomes(result)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", got, want)
	}
	if got := f.auditRepo.count(models.EventStageFailed); got != 1 {
		t.Errorf("stage-failed events = %d, want 1", got)
	}
}

func TestPipelineRun_SkipStagesAbsentFromResult(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	ctx := context.Background()

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{
		ThreadID:   "thread-001",
		SkipStages: []string{"enrichment"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, s := range result.Stages {
		if s.StageID == "enrichment" {
			t.Error("skipped stage must not appear in the result")
		}
	}
	if len(result.Stages) != 3 {
		t.Errorf("expected 3 stages, got %d", len(result.Stages))
	}
	if result.Status != "completed" {
		t.Errorf("Status = %s, want completed", result.Status)
	}
	if row, _ := f.progressRepo.Get(ctx, "thread-001", "enrichment"); row != nil {
		t.Errorf("skipped stage wrote progress: %+v", row)
	}
}

func TestPipelineRun_DependencyGate(t *testing.T) {
	f := newPipelineFixture()
	// plan depends on intent, which is not registered and never ran.
	f.stageRepo.addStage("plan", 4, true, "intent")
	ctx := context.Background()

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Stages) != 1 || result.Stages[0].Outcome != "skipped" {
		t.Fatalf("stages = %v, want plan skipped", stageOutcomes(result))
	}
	if !strings.Contains(result.Stages[0].Reason, "intent") {
		t.Errorf("Reason = %q, want mention of the missing dependency", result.Stages[0].Reason)
	}
	if result.Status != "partially_skipped" {
		t.Errorf("Status = %s, want partially_skipped", result.Status)
	}

	// No claim for a gated stage.
	latest, _ := f.claimRepo.LatestByStage(ctx, nil)
	if len(latest) != 0 {
		t.Errorf("gated stage acquired a claim: %v", latest)
	}

	// The skip is recorded as progress and audited.
	row, _ := f.progressRepo.Get(ctx, "thread-001", "plan")
	if row == nil || row.Status != "skipped" {
		t.Errorf("progress = %+v, want skipped", row)
	}
	if got := f.auditRepo.count(models.EventStageSkipped); got != 1 {
		t.Errorf("stage-skipped events = %d, want 1", got)
	}
}

func TestPipelineRun_ForceBypassesGate(t *testing.T) {
	f := newPipelineFixture()
	f.stageRepo.addStage("plan", 4, true, "intent")

	result, err := f.svc.Run(context.Background(), primary.RunPipelineRequest{
		ThreadID: "thread-001",
		Force:    true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Stages) != 1 || result.Stages[0].Outcome != "completed" {
		t.Errorf("stages = %v, want plan completed under force", stageOutcomes(result))
	}
}

func TestPipelineRun_DependencySatisfiedByPriorRun(t *testing.T) {
	f := newPipelineFixture()
	f.stageRepo.addStage("plan", 4, true, "intent")
	ctx := context.Background()

	// A previous run (or external executor) completed intent.
	if _, err := f.progressRepo.Upsert(ctx, &secondary.ProgressRecord{
		ID: "prog-001", ThreadID: "thread-001", StageID: "intent", Status: "completed",
		StateUpdate: map[string]any{"intent": "greeting"},
	}); err != nil {
		t.Fatalf("seed progress failed: %v", err)
	}

	var prior map[string]any
	f.resolver.set("plan", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		prior = req.PriorState
		return &secondary.HandlerResult{}, nil
	})

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stages[0].Outcome != "completed" {
		t.Errorf("plan outcome = %s, want completed", result.Stages[0].Outcome)
	}
	// State accumulated by earlier completed stages reaches the handler.
	if prior["intent"] != "greeting" {
		t.Errorf("PriorState = %v, want intent from prior run", prior)
	}
}

func TestPipelineRun_ContendedStageSkipped(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	ctx := context.Background()

	// Another executor holds intent.
	if _, err := f.claimRepo.Acquire(ctx, &secondary.ClaimRecord{
		ID: "claim-ext", ThreadID: "thread-001", StageID: "intent", ExecutorID: "exec-other",
	}); err != nil {
		t.Fatalf("seed claim failed: %v", err)
	}

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var intentResult *primary.StageRunResult
	for i := range result.Stages {
		if result.Stages[i].StageID == "intent" {
			intentResult = &result.Stages[i]
		}
	}
	if intentResult == nil || intentResult.Outcome != "skipped" {
		t.Fatalf("stages = %v, want intent skipped", stageOutcomes(result))
	}
	if !strings.Contains(intentResult.Reason, "exec-other") {
		t.Errorf("Reason = %q, want mention of the holder", intentResult.Reason)
	}

	// The holder's claim is untouched.
	active, _ := f.claimRepo.GetActive(ctx, "thread-001", "intent")
	if active == nil || active.ExecutorID != "exec-other" {
		t.Errorf("holder's claim = %+v, want still active", active)
	}
	if got := f.auditRepo.count(models.EventClaimContended); got != 1 {
		t.Errorf("contended events = %d, want 1", got)
	}
}

func TestPipelineRun_DryRun(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	ctx := context.Background()

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{
		ThreadID: "thread-001",
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.DryRun {
		t.Error("expected DryRun in result")
	}
	if result.Status != "completed" {
		t.Errorf("Status = %s, want completed", result.Status)
	}
	if len(result.Stages) != 4 {
		t.Errorf("expected 4 stages walked, got %d", len(result.Stages))
	}

	// No claims, no progress; only audit events.
	latest, _ := f.claimRepo.LatestByStage(ctx, nil)
	if len(latest) != 0 {
		t.Errorf("dry run acquired claims: %v", latest)
	}
	rows, _ := f.progressRepo.ListByThread(ctx, "thread-001")
	if len(rows) != 0 {
		t.Errorf("dry run wrote progress: %v", rows)
	}
	if f.auditRepo.total() == 0 {
		t.Error("dry run must still leave audit events")
	}
}

func TestPipelineRun_StageTimeout(t *testing.T) {
	f := newPipelineFixture()
	f.stageRepo.addStage("greeting", 1, true)
	f.resolver.set("greeting", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &secondary.HandlerResult{}, nil
		}
	})
	ctx := context.Background()

	result, err := f.svc.Run(ctx, primary.RunPipelineRequest{
		ThreadID:     "thread-001",
		StageTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Stages[0].Outcome != "timeout" {
		t.Errorf("outcome = %s, want timeout", result.Stages[0].Outcome)
	}
	if result.Status != "failed" {
		t.Errorf("Status = %s, want failed (required stage timed out)", result.Status)
	}

	row, _ := f.progressRepo.Get(ctx, "thread-001", "greeting")
	if row == nil || row.Status != "timeout" {
		t.Errorf("progress = %+v, want timeout", row)
	}
	if got := f.auditRepo.count(models.EventStageTimeout); got != 1 {
		t.Errorf("timeout events = %d, want 1", got)
	}
}

func TestPipelineRun_StateFlowsBetweenStages(t *testing.T) {
	f := newPipelineFixture()
	f.stageRepo.addStage("greeting", 1, true)
	f.stageRepo.addStage("intent", 2, true, "greeting")

	f.resolver.set("greeting", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		return &secondary.HandlerResult{
			Output:      map[string]any{"greeting": "hello"},
			StateUpdate: map[string]any{"greeted": true},
		}, nil
	})
	var prior map[string]any
	f.resolver.set("intent", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		prior = req.PriorState
		return &secondary.HandlerResult{}, nil
	})

	if _, err := f.svc.Run(context.Background(), primary.RunPipelineRequest{ThreadID: "thread-001"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if prior["greeted"] != true {
		t.Errorf("PriorState = %v, want greeted=true from the first stage", prior)
	}
}

func TestPipelineRun_EmptyThreadID(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.Run(context.Background(), primary.RunPipelineRequest{})
	var verr *primary.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPipelineRun_Unauthorized(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	svc := NewPipelineService(f.stageRepo, f.claimRepo, f.progressRepo, f.resolver, denyAllAuthorizer{}, f.auditRepo)

	_, err := svc.Run(context.Background(), primary.RunPipelineRequest{ThreadID: "thread-001"})
	var uerr *primary.UnauthorizedError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if got := f.auditRepo.total(); got != 0 {
		t.Errorf("total events = %d, want 0", got)
	}
}

func TestPipelineRun_ResumeSkipsNothingTwice(t *testing.T) {
	f := newPipelineFixture()
	f.seedDefaultPipeline()
	ctx := context.Background()

	// First run fails at intent.
	fail := true
	f.resolver.set("intent", func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		if fail {
			return nil, fmt.Errorf("transient")
		}
		return &secondary.HandlerResult{}, nil
	})

	first, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Status != "failed" {
		t.Fatalf("first Status = %s, want failed", first.Status)
	}

	// Second run: intent recovers, the whole plan replays. Terminal
	// completed rows are simply overwritten with fresh completed ones.
	fail = false
	second, err := f.svc.Run(ctx, primary.RunPipelineRequest{ThreadID: "thread-001"})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.Status != "completed" {
		t.Errorf("second Status = %s, want completed", second.Status)
	}
	for _, id := range []string{"greeting", "intent", "enrichment", "plan"} {
		row, _ := f.progressRepo.Get(ctx, "thread-001", id)
		if row == nil || row.Status != "completed" {
			t.Errorf("progress for %s = %+v, want completed", id, row)
		}
	}
}
