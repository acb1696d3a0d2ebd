package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SeedDefaultPipeline registers the conversational default pipeline on an
// empty catalog. It is a no-op when any stage is already registered, so
// running init twice is safe.
func SeedDefaultPipeline(database *sql.DB) error {
	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM stages").Scan(&count); err != nil {
		return fmt.Errorf("seed stages: %w", err)
	}
	if count > 0 {
		return nil
	}

	stages := []struct {
		id       string
		position int
		required bool
		deps     []string
	}{
		{"greeting", 1, true, nil},
		{"intent", 2, true, []string{"greeting"}},
		{"enrichment", 3, false, []string{"intent"}},
		{"plan", 4, true, []string{"intent"}},
	}

	for _, s := range stages {
		deps := s.deps
		if deps == nil {
			deps = []string{}
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return fmt.Errorf("seed stages: %w", err)
		}
		if _, err := database.Exec(
			"INSERT INTO stages (id, position, is_active, is_required, dependencies, config) VALUES (?, ?, 1, ?, ?, '{}')",
			s.id, s.position, s.required, string(depsJSON),
		); err != nil {
			return fmt.Errorf("seed stage %s: %w", s.id, err)
		}
	}

	return nil
}
