package app

import (
	"context"
	"fmt"

	"github.com/example/stagehand/internal/core/stage"
	"github.com/example/stagehand/internal/models"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/ports/secondary"
)

// RegistryServiceImpl implements the RegistryService interface.
// The catalog is read-mostly: writes happen on the administration path
// and validate dependency shape before touching storage.
type RegistryServiceImpl struct {
	stageRepo  secondary.StageRepository
	authorizer secondary.Authorizer
	audit      *auditTrail
}

// NewRegistryService creates a new RegistryService with injected dependencies.
func NewRegistryService(stageRepo secondary.StageRepository, authorizer secondary.Authorizer, auditRepo secondary.AuditRepository) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		stageRepo:  stageRepo,
		authorizer: authorizer,
		audit:      newAuditTrail(auditRepo),
	}
}

func (s *RegistryServiceImpl) catalog(ctx context.Context) (map[string]stage.Definition, error) {
	records, err := s.stageRepo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defs := make(map[string]stage.Definition, len(records))
	for _, r := range records {
		defs[r.ID] = stage.Definition{
			ID:           r.ID,
			Position:     r.Position,
			IsActive:     r.IsActive,
			IsRequired:   r.IsRequired,
			Dependencies: r.Dependencies,
		}
	}
	return defs, nil
}

// RegisterStage adds a stage definition to the catalog.
func (s *RegistryServiceImpl) RegisterStage(ctx context.Context, req primary.RegisterStageRequest) (*primary.Stage, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}
	if req.StageID == "" {
		return nil, &primary.ValidationError{Field: "stage_id", Reason: "must not be empty"}
	}

	existing, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	guard := stage.CanRegisterStage(stage.RegisterContext{
		Stage: stage.Definition{
			ID:           req.StageID,
			Position:     req.Position,
			IsActive:     true,
			IsRequired:   req.IsRequired,
			Dependencies: req.Dependencies,
		},
		Existing: existing,
	})
	if !guard.Allowed {
		return nil, &primary.ValidationError{Field: "stage", Reason: guard.Reason}
	}

	record := &secondary.StageRecord{
		ID:           req.StageID,
		Position:     req.Position,
		IsActive:     true,
		IsRequired:   req.IsRequired,
		Dependencies: req.Dependencies,
		Config:       req.Config,
	}
	if err := s.stageRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to register stage: %w", err)
	}

	s.audit.record(ctx, models.EventStageRegistered, "", req.StageID, map[string]any{
		"position":    req.Position,
		"is_required": req.IsRequired,
	})

	created, err := s.stageRepo.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registered stage: %w", err)
	}
	return recordToStage(created), nil
}

// UpdateStage overwrites the mutable fields of a definition, re-running
// the same dependency validation against the rest of the catalog.
func (s *RegistryServiceImpl) UpdateStage(ctx context.Context, req primary.UpdateStageRequest) (*primary.Stage, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}

	existing, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[req.StageID]; !ok {
		return nil, &primary.NotFoundError{Kind: "stage", ID: req.StageID}
	}

	// Validate against the catalog with this stage replaced.
	rest := make(map[string]stage.Definition, len(existing)-1)
	for id, def := range existing {
		if id != req.StageID {
			rest[id] = def
		}
	}
	guard := stage.CanRegisterStage(stage.RegisterContext{
		Stage: stage.Definition{
			ID:           req.StageID,
			Position:     req.Position,
			IsActive:     req.IsActive,
			IsRequired:   req.IsRequired,
			Dependencies: req.Dependencies,
		},
		Existing: rest,
	})
	if !guard.Allowed {
		return nil, &primary.ValidationError{Field: "stage", Reason: guard.Reason}
	}

	record := &secondary.StageRecord{
		ID:           req.StageID,
		Position:     req.Position,
		IsActive:     req.IsActive,
		IsRequired:   req.IsRequired,
		Dependencies: req.Dependencies,
		Config:       req.Config,
	}
	if err := s.stageRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}

	s.audit.record(ctx, models.EventStageUpdated, "", req.StageID, nil)

	updated, err := s.stageRepo.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch updated stage: %w", err)
	}
	return recordToStage(updated), nil
}

// GetStage retrieves a single definition.
func (s *RegistryServiceImpl) GetStage(ctx context.Context, stageID string) (*primary.Stage, error) {
	record, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &primary.NotFoundError{Kind: "stage", ID: stageID}
	}
	return recordToStage(record), nil
}

// ListStages lists definitions ordered by position then ID.
func (s *RegistryServiceImpl) ListStages(ctx context.Context, activeOnly bool) ([]*primary.Stage, error) {
	records, err := s.stageRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	stages := make([]*primary.Stage, len(records))
	for i, r := range records {
		stages[i] = recordToStage(r)
	}
	return stages, nil
}

// DeactivateStage flips a stage inactive without deleting it.
func (s *RegistryServiceImpl) DeactivateStage(ctx context.Context, stageID string) error {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return &primary.UnauthorizedError{Reason: d.Error}
	}

	exists, err := s.stageRepo.Exists(ctx, stageID)
	if err != nil {
		return err
	}
	if !exists {
		return &primary.NotFoundError{Kind: "stage", ID: stageID}
	}

	if err := s.stageRepo.Deactivate(ctx, stageID); err != nil {
		return err
	}

	s.audit.record(ctx, models.EventStageDeactivated, "", stageID, nil)
	return nil
}

// LoadPipeline bulk-registers stages from a parsed pipeline definition.
// The set is validated as a whole before any stage is written, so a bad
// definition rejects cleanly instead of half-applying.
func (s *RegistryServiceImpl) LoadPipeline(ctx context.Context, req primary.LoadPipelineRequest) ([]*primary.Stage, error) {
	if d := s.authorizer.Check(ctx); !d.Valid {
		return nil, &primary.UnauthorizedError{Reason: d.Error}
	}
	if len(req.Stages) == 0 {
		return nil, &primary.ValidationError{Field: "stages", Reason: "pipeline definition is empty"}
	}

	existing, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	merged := existing
	for _, in := range req.Stages {
		if in.StageID == "" {
			return nil, &primary.ValidationError{Field: "stage_id", Reason: "must not be empty"}
		}
		guard := stage.CanRegisterStage(stage.RegisterContext{
			Stage: stage.Definition{
				ID:           in.StageID,
				Position:     in.Position,
				IsActive:     true,
				IsRequired:   in.IsRequired,
				Dependencies: in.Dependencies,
			},
			Existing: merged,
		})
		if !guard.Allowed {
			return nil, &primary.ValidationError{Field: "stage", Reason: guard.Reason}
		}
		merged[in.StageID] = stage.Definition{
			ID:           in.StageID,
			Position:     in.Position,
			IsActive:     true,
			IsRequired:   in.IsRequired,
			Dependencies: in.Dependencies,
		}
	}

	var loaded []*primary.Stage
	for _, in := range req.Stages {
		created, err := s.RegisterStage(ctx, in)
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, created)
	}
	return loaded, nil
}

// Ensure RegistryServiceImpl implements the interface
var _ primary.RegistryService = (*RegistryServiceImpl)(nil)
