// Package registry maps tool names to executable capabilities.
// It is the single mutable shared structure behind dispatch; all mutation
// goes through Register.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/knowd-io/knowd/internal/domain"
)

// Tool is a named capability invocable with argument maps.
// Call returns a result map containing at least a "status" field; expected
// error conditions are reported inside the map, only truly exceptional
// failures come back as an error.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args, kwargs map[string]any) (map[string]any, error)
}

// Registry is a concurrency-safe name -> Tool map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty registry. Construct one per process (or per test)
// and inject it into the dispatcher.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a name twice is an error, never a
// silent overwrite.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q: %w", name, domain.ErrAlreadyExists)
	}
	r.tools[name] = t
	return nil
}

// MustRegister registers a tool or panics. For composition-root wiring only.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
