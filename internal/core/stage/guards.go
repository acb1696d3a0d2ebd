// Package stage contains the pure business logic for the stage catalog.
// Guards are pure functions that evaluate preconditions without side effects.
package stage

import (
	"fmt"
	"sort"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// Definition is the registry's view of a stage, used by guards and
// ordering helpers.
type Definition struct {
	ID           string
	Position     int
	IsActive     bool
	IsRequired   bool
	Dependencies []string
}

// RegisterContext provides context for stage registration guards.
type RegisterContext struct {
	Stage    Definition
	Existing map[string]Definition // catalog as it stands, keyed by stage ID
}

// CanRegisterStage evaluates whether a stage definition may enter the
// catalog. Rules:
// - stage_id must not already be registered
// - a stage may not depend on itself
// - a stage may not depend on a stage with a strictly greater position
// - the resulting dependency graph must stay acyclic
func CanRegisterStage(ctx RegisterContext) GuardResult {
	if _, ok := ctx.Existing[ctx.Stage.ID]; ok {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stage %s already registered", ctx.Stage.ID),
		}
	}

	for _, dep := range ctx.Stage.Dependencies {
		if dep == ctx.Stage.ID {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("stage %s cannot depend on itself", ctx.Stage.ID),
			}
		}
		if existing, ok := ctx.Existing[dep]; ok && existing.Position > ctx.Stage.Position {
			return GuardResult{
				Allowed: false,
				Reason: fmt.Sprintf("stage %s cannot depend on later stage %s (position %d > %d)",
					ctx.Stage.ID, dep, existing.Position, ctx.Stage.Position),
			}
		}
	}

	merged := make(map[string]Definition, len(ctx.Existing)+1)
	for id, def := range ctx.Existing {
		merged[id] = def
	}
	merged[ctx.Stage.ID] = ctx.Stage

	if cycle := DetectCycle(merged); len(cycle) > 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("dependency cycle: %v", cycle),
		}
	}

	return GuardResult{Allowed: true}
}

// DetectCycle walks the dependency graph and returns the stage IDs
// participating in the first cycle found, or nil if the graph is acyclic.
// Dependencies on unregistered stages are ignored here; existence is
// checked separately at execution time.
func DetectCycle(defs map[string]Definition) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(defs))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		switch state[id] {
		case done:
			return false
		case visiting:
			cycle = append([]string{}, path...)
			cycle = append(cycle, id)
			return true
		}
		state[id] = visiting
		def := defs[id]
		for _, dep := range def.Dependencies {
			if _, ok := defs[dep]; !ok {
				continue
			}
			if visit(dep, append(path, id)) {
				return true
			}
		}
		state[id] = done
		return false
	}

	// Deterministic iteration so the reported cycle is stable.
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited {
			if visit(id, nil) {
				return cycle
			}
		}
	}
	return nil
}

// SortOrdered sorts definitions by position, ties broken by stage ID.
func SortOrdered(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Position != defs[j].Position {
			return defs[i].Position < defs[j].Position
		}
		return defs[i].ID < defs[j].ID
	})
}

// DependencyContext provides context for the execution-time dependency gate.
type DependencyContext struct {
	Stage Definition
	// StatusByStage holds the current progress status per stage ID;
	// absent entries mean the stage was never attempted.
	StatusByStage map[string]string
	Force         bool
}

// UnmetDependencies returns the dependencies of a stage that have not yet
// reached a success-like terminal status (completed or skipped). Forced
// execution bypasses the gate entirely.
func UnmetDependencies(ctx DependencyContext) []string {
	if ctx.Force {
		return nil
	}
	var unmet []string
	for _, dep := range ctx.Stage.Dependencies {
		switch ctx.StatusByStage[dep] {
		case "completed", "skipped":
		default:
			unmet = append(unmet, dep)
		}
	}
	return unmet
}
