// Package models contains domain types for stagehand entities.
// SQL persistence lives in internal/adapters/sqlite/*.go
package models

import "time"

// StageDefinition represents one named, orderable unit of work in the
// pipeline catalog. For persistence, use the repository interfaces in
// ports/secondary.
type StageDefinition struct {
	ID           string
	Position     int
	IsActive     bool
	IsRequired   bool
	Dependencies []string
	Config       map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
