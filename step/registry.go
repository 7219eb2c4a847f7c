package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/vaultflow/errors"
)

// Registry maps step names to implementations.
// Registration is expected at startup; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds s under s.Name(). A name that is already taken is a
// DUPLICATE_STEP error and leaves the existing entry in place.
func (r *Registry) Register(s Step) error {
	name := s.Name()
	if name == "" {
		return errors.InvalidInput("name", "step name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[name]; exists {
		return errors.DuplicateStep(name)
	}
	r.steps[name] = s
	return nil
}

// MustRegister registers every step and panics on the first failure.
func (r *Registry) MustRegister(steps ...Step) {
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("step: %v", err))
		}
	}
}

// Override registers s, replacing any step with the same name.
func (r *Registry) Override(s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[s.Name()] = s
}

// Lookup returns the step registered under name.
func (r *Registry) Lookup(name string) (Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// Keys returns the registered names in ascending order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unknown builds the UNKNOWN_STEP error for name against this registry.
func (r *Registry) Unknown(name string) error {
	return errors.UnknownStep(name, r.Keys())
}
