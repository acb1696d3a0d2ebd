package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	coreprogress "github.com/example/stagehand/internal/core/progress"
	"github.com/example/stagehand/internal/ports/secondary"
)

// Shared in-memory mock repositories for service tests. They reproduce
// the store-level invariants (one active claim per pair, monotonic
// progress upsert) so service tests exercise the same semantics as the
// SQLite adapters without a database.

func testTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// mockStageRepo is an in-memory StageRepository.
type mockStageRepo struct {
	stages map[string]*secondary.StageRecord
}

func newMockStageRepo() *mockStageRepo {
	return &mockStageRepo{stages: make(map[string]*secondary.StageRecord)}
}

func (m *mockStageRepo) Create(ctx context.Context, stage *secondary.StageRecord) error {
	if _, ok := m.stages[stage.ID]; ok {
		return fmt.Errorf("stage %s already exists", stage.ID)
	}
	cp := *stage
	cp.CreatedAt = testTimestamp()
	cp.UpdatedAt = cp.CreatedAt
	m.stages[stage.ID] = &cp
	return nil
}

func (m *mockStageRepo) Update(ctx context.Context, stage *secondary.StageRecord) error {
	existing, ok := m.stages[stage.ID]
	if !ok {
		return fmt.Errorf("stage %s not found", stage.ID)
	}
	cp := *stage
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = testTimestamp()
	m.stages[stage.ID] = &cp
	return nil
}

func (m *mockStageRepo) GetByID(ctx context.Context, id string) (*secondary.StageRecord, error) {
	return m.stages[id], nil
}

func (m *mockStageRepo) List(ctx context.Context, activeOnly bool) ([]*secondary.StageRecord, error) {
	var records []*secondary.StageRecord
	for _, s := range m.stages {
		if activeOnly && !s.IsActive {
			continue
		}
		records = append(records, s)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Position != records[j].Position {
			return records[i].Position < records[j].Position
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (m *mockStageRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.stages[id]
	return ok, nil
}

func (m *mockStageRepo) Deactivate(ctx context.Context, id string) error {
	s, ok := m.stages[id]
	if !ok {
		return fmt.Errorf("stage %s not found", id)
	}
	s.IsActive = false
	return nil
}

// addStage registers a stage directly, bypassing validation.
func (m *mockStageRepo) addStage(id string, position int, required bool, deps ...string) {
	m.stages[id] = &secondary.StageRecord{
		ID:           id,
		Position:     position,
		IsActive:     true,
		IsRequired:   required,
		Dependencies: deps,
		Config:       map[string]any{},
		CreatedAt:    testTimestamp(),
		UpdatedAt:    testTimestamp(),
	}
}

// mockClaimRepo is an in-memory ClaimRepository enforcing the
// one-active-claim-per-pair invariant.
type mockClaimRepo struct {
	mu     sync.Mutex
	claims map[string]*secondary.ClaimRecord
	order  []string
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{claims: make(map[string]*secondary.ClaimRecord)}
}

func (m *mockClaimRepo) Acquire(ctx context.Context, claim *secondary.ClaimRecord) (*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.claims {
		if existing.ThreadID == claim.ThreadID && existing.StageID == claim.StageID && existing.Status == "active" {
			return existing, nil
		}
	}

	cp := *claim
	cp.Status = "active"
	cp.ReviewStatus = "pending"
	cp.AcquiredAt = testTimestamp()
	m.claims[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	return nil, nil
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id string) (*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id], nil
}

func (m *mockClaimRepo) GetActive(ctx context.Context, threadID, stageID string) (*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ThreadID == threadID && c.StageID == stageID && c.Status == "active" {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockClaimRepo) Release(ctx context.Context, id, status string) (*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	if c.Status == "active" {
		c.Status = status
		c.ReleasedAt = testTimestamp()
	}
	return c, nil
}

func (m *mockClaimRepo) Approve(ctx context.Context, id string) (*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	c.ReviewStatus = "approved"
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	c.Metadata["approved_at"] = testTimestamp()
	return c, nil
}

func (m *mockClaimRepo) LatestByStage(ctx context.Context, threadIDs []string) (map[string]*secondary.ClaimRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	include := func(threadID string) bool {
		if len(threadIDs) == 0 {
			return true
		}
		for _, id := range threadIDs {
			if id == threadID {
				return true
			}
		}
		return false
	}

	latest := make(map[string]*secondary.ClaimRecord)
	for _, id := range m.order {
		c := m.claims[id]
		if include(c.ThreadID) {
			latest[c.StageID] = c
		}
	}
	return latest, nil
}

// mockProgressRepo is an in-memory ProgressRepository with the
// monotonicity guard.
type mockProgressRepo struct {
	mu   sync.Mutex
	rows map[string]*secondary.ProgressRecord
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{rows: make(map[string]*secondary.ProgressRecord)}
}

func progressKey(threadID, stageID string) string {
	return threadID + "\x00" + stageID
}

func (m *mockProgressRepo) Upsert(ctx context.Context, rec *secondary.ProgressRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := progressKey(rec.ThreadID, rec.StageID)
	current := ""
	if existing, ok := m.rows[key]; ok {
		current = existing.Status
	}
	if !coreprogress.CanApply(current, rec.Status).Allowed {
		return false, nil
	}

	cp := *rec
	cp.UpdatedAt = testTimestamp()
	if existing, ok := m.rows[key]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = cp.UpdatedAt
	}
	m.rows[key] = &cp
	return true, nil
}

func (m *mockProgressRepo) Get(ctx context.Context, threadID, stageID string) (*secondary.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[progressKey(threadID, stageID)], nil
}

func (m *mockProgressRepo) ListByThread(ctx context.Context, threadID string) ([]*secondary.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []*secondary.ProgressRecord
	for _, r := range m.rows {
		if r.ThreadID == threadID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StageID < records[j].StageID })
	return records, nil
}

func (m *mockProgressRepo) CountByStatus(ctx context.Context, threadIDs []string) (map[string]map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	include := func(threadID string) bool {
		if len(threadIDs) == 0 {
			return true
		}
		for _, id := range threadIDs {
			if id == threadID {
				return true
			}
		}
		return false
	}

	counts := make(map[string]map[string]int)
	for _, r := range m.rows {
		if !include(r.ThreadID) {
			continue
		}
		if counts[r.StageID] == nil {
			counts[r.StageID] = make(map[string]int)
		}
		counts[r.StageID][r.Status]++
	}
	return counts, nil
}

// mockAuditRepo is an in-memory append-only AuditRepository.
type mockAuditRepo struct {
	mu     sync.Mutex
	events []*secondary.AuditRecord
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Append(ctx context.Context, event *secondary.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	cp.CreatedAt = testTimestamp()
	m.events = append(m.events, &cp)
	return nil
}

func (m *mockAuditRepo) ListByPrefix(ctx context.Context, prefix string, limit int) ([]*secondary.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []*secondary.AuditRecord
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.events[i]
		if len(e.EventName) >= len(prefix) && e.EventName[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) LastTimestampForStage(ctx context.Context, stageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].StageID == stageID {
			return m.events[i].CreatedAt, nil
		}
	}
	return "", nil
}

// count returns how many recorded events carry the given name.
func (m *mockAuditRepo) count(eventName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.EventName == eventName {
			n++
		}
	}
	return n
}

// total returns the number of recorded events.
func (m *mockAuditRepo) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// allowAllAuthorizer accepts every caller.
type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Check(ctx context.Context) secondary.AuthDecision {
	return secondary.AuthDecision{Valid: true}
}

// denyAllAuthorizer rejects every caller.
type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Check(ctx context.Context) secondary.AuthDecision {
	return secondary.AuthDecision{Valid: false, Error: "executor identity missing"}
}

// handlerFunc adapts a function to the StageHandler interface.
type handlerFunc func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error)

func (f handlerFunc) Execute(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
	return f(ctx, req)
}

// mockResolver returns per-stage handlers, falling back to a handler
// that completes with an empty result.
type mockResolver struct {
	handlers map[string]secondary.StageHandler
}

func newMockResolver() *mockResolver {
	return &mockResolver{handlers: make(map[string]secondary.StageHandler)}
}

func (m *mockResolver) set(stageID string, h handlerFunc) {
	m.handlers[stageID] = h
}

func (m *mockResolver) Resolve(stageID string, config map[string]any) secondary.StageHandler {
	if h, ok := m.handlers[stageID]; ok {
		return h
	}
	return handlerFunc(func(ctx context.Context, req secondary.HandlerRequest) (*secondary.HandlerResult, error) {
		return &secondary.HandlerResult{Output: map[string]any{}, StateUpdate: map[string]any{}}, nil
	})
}
