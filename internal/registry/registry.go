package registry

import (
	"fmt"

	"github.com/vk/meshflow/internal/driver"
	"github.com/vk/meshflow/internal/state"
	"github.com/zclconf/go-cty/cty"
)

// Module is the interface every compiled package implements.
type Module interface {
	Name() string
	// Initialize builds the package schema from its configured params.
	Initialize(params map[string]cty.Value) (*state.Schema, error)
}

// ProblemSource is implemented by modules that supply the driver's
// computation.
type ProblemSource interface {
	Problem(s *state.Schema) (driver.Problem, error)
}

// Registry holds the compiled modules of one application instance in
// registration order.
type Registry struct {
	modules []Module
	byName  map[string]Module
}

// New creates a registry holding mods.
func New(mods ...Module) (*Registry, error) {
	r := &Registry{byName: make(map[string]Module)}
	for _, m := range mods {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a module. Names must be unique.
func (r *Registry) Register(m Module) error {
	if _, ok := r.byName[m.Name()]; ok {
		return fmt.Errorf("module '%s' registered twice", m.Name())
	}
	r.modules = append(r.modules, m)
	r.byName[m.Name()] = m
	return nil
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names lists module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.modules))
	for i, m := range r.modules {
		out[i] = m.Name()
	}
	return out
}

// Problem returns the problem of the single package whose module is a
// ProblemSource.
func (r *Registry) Problem(packages *state.Packages) (driver.Problem, error) {
	var found []string
	var problem driver.Problem
	for _, name := range packages.Names() {
		src, ok := r.byName[name].(ProblemSource)
		if !ok {
			continue
		}
		s, _ := packages.Get(name)
		p, err := src.Problem(s)
		if err != nil {
			return nil, fmt.Errorf("package '%s': %w", name, err)
		}
		found = append(found, name)
		problem = p
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no package supplies a problem; registered modules: %v", r.Names())
	case 1:
		return problem, nil
	default:
		return nil, fmt.Errorf("more than one package supplies a problem: %v", found)
	}
}
