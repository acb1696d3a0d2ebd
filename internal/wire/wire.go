// Package wire provides dependency injection for the stagehand application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"sync"

	"github.com/example/stagehand/internal/adapters/auth"
	"github.com/example/stagehand/internal/adapters/handler"
	"github.com/example/stagehand/internal/adapters/sqlite"
	"github.com/example/stagehand/internal/app"
	"github.com/example/stagehand/internal/db"
	"github.com/example/stagehand/internal/ports/primary"
)

var (
	registryService primary.RegistryService
	claimService    primary.ClaimService
	progressService primary.ProgressService
	pipelineService primary.PipelineService
	flowService     primary.FlowService
	auditService    primary.AuditService
	handlerRegistry *handler.Registry
	once            sync.Once
)

// RegistryService returns the singleton RegistryService instance.
func RegistryService() primary.RegistryService {
	once.Do(initServices)
	return registryService
}

// ClaimService returns the singleton ClaimService instance.
func ClaimService() primary.ClaimService {
	once.Do(initServices)
	return claimService
}

// ProgressService returns the singleton ProgressService instance.
func ProgressService() primary.ProgressService {
	once.Do(initServices)
	return progressService
}

// PipelineService returns the singleton PipelineService instance.
func PipelineService() primary.PipelineService {
	once.Do(initServices)
	return pipelineService
}

// FlowService returns the singleton FlowService instance.
func FlowService() primary.FlowService {
	once.Do(initServices)
	return flowService
}

// AuditService returns the singleton AuditService instance.
func AuditService() primary.AuditService {
	once.Do(initServices)
	return auditService
}

// HandlerRegistry returns the singleton handler registry so embedders
// can register custom stage handlers before running pipelines.
func HandlerRegistry() *handler.Registry {
	once.Do(initServices)
	return handlerRegistry
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Repository adapters (secondary ports) with injected DB
	stageRepo := sqlite.NewStageRepository(database)
	claimRepo := sqlite.NewClaimRepository(database)
	progressRepo := sqlite.NewProgressRepository(database)
	auditRepo := sqlite.NewAuditRepository(database)

	authorizer := auth.NewExecutorAuthorizer()
	handlerRegistry = handler.NewRegistry()

	// Services (primary ports implementation)
	registryService = app.NewRegistryService(stageRepo, authorizer, auditRepo)
	claimService = app.NewClaimService(claimRepo, stageRepo, authorizer, auditRepo)
	progressService = app.NewProgressService(progressRepo, stageRepo, authorizer, auditRepo)
	pipelineService = app.NewPipelineService(stageRepo, claimRepo, progressRepo, handlerRegistry, authorizer, auditRepo)
	flowService = app.NewFlowService(stageRepo, claimRepo, progressRepo, auditRepo)
	auditService = app.NewAuditService(auditRepo)
}
