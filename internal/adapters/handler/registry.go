// Package handler contains the built-in stage handler implementations
// and the registry that resolves a stage's declared handler by name.
package handler

import (
	"sync"

	"github.com/example/stagehand/internal/ports/secondary"
)

// Registry resolves stage handlers by the "handler" key of a stage's
// config. Stages without one fall back to the echo handler so a freshly
// seeded pipeline is runnable out of the box.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]secondary.StageHandler
	fallback secondary.StageHandler
}

// NewRegistry creates a registry with the built-in handlers registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]secondary.StageHandler),
		fallback: NewEchoHandler(),
	}
	r.Register("echo", NewEchoHandler())
	r.Register("script", NewScriptHandler())
	return r
}

// Register adds or replaces a named handler.
func (r *Registry) Register(name string, h secondary.StageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Resolve returns the handler a stage's config names, or the fallback.
func (r *Registry) Resolve(stageID string, config map[string]any) secondary.StageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, _ := config["handler"].(string)
	if name == "" {
		return r.fallback
	}
	if h, ok := r.handlers[name]; ok {
		return h
	}
	return r.fallback
}

// Ensure Registry implements the interface
var _ secondary.HandlerResolver = (*Registry)(nil)
