package widgets

import (
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aristath/lvglgen/internal/codegen"
)

// Registry holds all registered widget types keyed by YAML name.
type Registry struct {
	types map[string]Type
	mu    sync.RWMutex
}

// NewRegistry creates an empty widget type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds a widget type, replacing any type with the same name.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[t.Name()] = t
}

// Get returns a widget type by name, or nil if not found.
func (r *Registry) Get(name string) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.types[name]
}

// Names returns registered type names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActionFunc builds the statements for one action step.
type ActionFunc func(sess *codegen.Session, value *yaml.Node, path string, env Env) ([]string, error)

// ActionRegistry maps action names such as lvgl.lottie.start to builders.
type ActionRegistry struct {
	actions map[string]ActionFunc
	mu      sync.RWMutex
}

// NewActionRegistry creates an empty action registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]ActionFunc)}
}

// Register adds an action builder.
func (r *ActionRegistry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[name] = fn
}

// Get returns the builder for name, or nil.
func (r *ActionRegistry) Get(name string) ActionFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.actions[name]
}

// Names returns registered action names in alphabetical order.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateAction returns the generic lvgl.<kind>.update builder for an
// Updater: it resolves the target, validates the modify schema and asks the
// type for the statements.
func UpdateAction(kind string, u Updater) ActionFunc {
	return func(sess *codegen.Session, value *yaml.Node, path string, env Env) ([]string, error) {
		inst, m, err := ResolveTarget(sess, value, path, kind)
		if err != nil {
			return nil, err
		}
		if m == nil {
			// bare id: nothing to update
			return nil, nil
		}
		update, err := u.ValidateUpdate(m, env)
		if err != nil {
			return nil, err
		}
		if err := m.CheckUnknown(); err != nil {
			return nil, err
		}
		return u.ToCodeUpdate(sess, inst.Widget, update)
	}
}
