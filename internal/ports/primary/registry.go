package primary

import "context"

// RegistryService defines the primary port for stage catalog
// administration. Writes validate dependency shape; reads are side-effect
// free and safe for unlimited concurrent callers.
type RegistryService interface {
	// RegisterStage adds a stage definition to the catalog.
	RegisterStage(ctx context.Context, req RegisterStageRequest) (*Stage, error)

	// UpdateStage overwrites the mutable fields of a definition.
	UpdateStage(ctx context.Context, req UpdateStageRequest) (*Stage, error)

	// GetStage retrieves a single definition.
	GetStage(ctx context.Context, stageID string) (*Stage, error)

	// ListStages lists definitions ordered by position then ID.
	ListStages(ctx context.Context, activeOnly bool) ([]*Stage, error)

	// DeactivateStage flips a stage inactive without deleting it.
	DeactivateStage(ctx context.Context, stageID string) error

	// LoadPipeline bulk-registers stages from a parsed pipeline
	// definition, validating the set as a whole.
	LoadPipeline(ctx context.Context, req LoadPipelineRequest) ([]*Stage, error)
}

// Stage is the caller-facing view of a stage definition.
type Stage struct {
	ID           string
	Position     int
	IsActive     bool
	IsRequired   bool
	Dependencies []string
	Config       map[string]any
	CreatedAt    string
	UpdatedAt    string
}

// RegisterStageRequest contains parameters for registering a stage.
type RegisterStageRequest struct {
	StageID      string
	Position     int
	IsRequired   bool
	Dependencies []string
	Config       map[string]any
}

// UpdateStageRequest contains parameters for updating a stage.
type UpdateStageRequest struct {
	StageID      string
	Position     int
	IsActive     bool
	IsRequired   bool
	Dependencies []string
	Config       map[string]any
}

// LoadPipelineRequest contains a full pipeline definition to register.
type LoadPipelineRequest struct {
	Stages []RegisterStageRequest
}
