// Package generate provides the backends behind the generation capability.
package generate

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cgast/gigsmith/pkg/task"
)

// Backend names.
const (
	BackendOffline = "offline"
	BackendLLM     = "llm"
	BackendHTTP    = "http"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrDuplicate      = errors.New("backend already registered")
)

// Registry holds generation backends keyed by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]task.Generator
}

// NewRegistry creates a registry holding the offline backend.
func NewRegistry() *Registry {
	r := &Registry{backends: make(map[string]task.Generator)}
	r.backends[BackendOffline] = Offline{}
	return r
}

// Register adds a backend. Returns an error if the name is taken.
func (r *Registry) Register(name string, gen task.Generator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.backends[name] = gen
	return nil
}

// Resolve looks up a backend by name.
func (r *Registry) Resolve(name string) (task.Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gen, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return gen, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
