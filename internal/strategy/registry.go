package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lowfen/keel/internal/core"
)

// Constructor builds an evaluator from its parameter map.
type Constructor func(Params) Evaluator

// Registry maps strategy identifiers to constructors. It is populated at
// process start; there is no runtime discovery.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under the given identifier, replacing any
// previous registration.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

// New builds the named evaluator with the given params, or
// ErrStrategyNotFound.
func (r *Registry) New(name string, params Params) (Evaluator, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("strategy %q", name))
	}
	return c(params), nil
}

// Names returns the registered identifiers in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
