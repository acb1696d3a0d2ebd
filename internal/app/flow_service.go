package app

import (
	"context"
	"fmt"

	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

// FlowServiceImpl implements the FlowService interface: the read model
// joining the catalog with the most recent claim, the current progress
// histogram, and the last audit timestamp per stage.
type FlowServiceImpl struct {
	stageRepo    secondary.StageRepository
	claimRepo    secondary.ClaimRepository
	progressRepo secondary.ProgressRepository
	auditRepo    secondary.AuditRepository
}

// NewFlowService creates a new FlowService with injected dependencies.
func NewFlowService(stageRepo secondary.StageRepository, claimRepo secondary.ClaimRepository, progressRepo secondary.ProgressRepository, auditRepo secondary.AuditRepository) *FlowServiceImpl {
	return &FlowServiceImpl{
		stageRepo:    stageRepo,
		claimRepo:    claimRepo,
		progressRepo: progressRepo,
		auditRepo:    auditRepo,
	}
}

// GetFlowView builds one entry per active stage, in pipeline order.
func (s *FlowServiceImpl) GetFlowView(ctx context.Context, threadIDs []string) ([]*primary.FlowEntry, error) {
	stages, err := s.stageRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}

	claims, err := s.claimRepo.LatestByStage(ctx, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}

	counts, err := s.progressRepo.CountByStatus(ctx, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate progress: %w", err)
	}

	entries := make([]*primary.FlowEntry, 0, len(stages))
	for _, st := range stages {
		entry := &primary.FlowEntry{
			Stage:          recordToStage(st),
			ProgressCounts: counts[st.ID],
		}
		if entry.ProgressCounts == nil {
			entry.ProgressCounts = map[string]int{}
		}
		if claim, ok := claims[st.ID]; ok {
			entry.Claim = recordToClaim(claim)
		}

		ts, err := s.auditRepo.LastTimestampForStage(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load audit timestamp: %w", err)
		}
		entry.LastAuditTimestamp = ts

		entries = append(entries, entry)
	}

	return entries, nil
}

// Ensure FlowServiceImpl implements the interface
var _ primary.FlowService = (*FlowServiceImpl)(nil)

// AuditServiceImpl implements the AuditService interface.
type AuditServiceImpl struct {
	auditRepo secondary.AuditRepository
}

// NewAuditService creates a new AuditService with injected dependencies.
func NewAuditService(auditRepo secondary.AuditRepository) *AuditServiceImpl {
	return &AuditServiceImpl{auditRepo: auditRepo}
}

// ListEvents retrieves the most recent events matching a name prefix.
func (s *AuditServiceImpl) ListEvents(ctx context.Context, prefix string, limit int) ([]*primary.AuditEvent, error) {
	records, err := s.auditRepo.ListByPrefix(ctx, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	events := make([]*primary.AuditEvent, len(records))
	for i, r := range records {
		events[i] = recordToAuditEvent(r)
	}
	return events, nil
}

// Ensure AuditServiceImpl implements the interface
var _ primary.AuditService = (*AuditServiceImpl)(nil)
