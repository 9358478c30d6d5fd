package config

import (
	"slices"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ModuleRegistry = (*Registry)(nil)

// Registry answers module lookups over a loaded project.
type Registry struct {
	project *domain.Project
	byName  map[string]*domain.Module
}

// NewRegistry indexes the modules of project.
func NewRegistry(project *domain.Project) *Registry {
	byName := make(map[string]*domain.Module, len(project.Modules))
	for _, m := range project.Modules {
		byName[m.Name] = m
	}
	return &Registry{project: project, byName: byName}
}

// Project returns the indexed project.
func (r *Registry) Project() *domain.Project {
	return r.project
}

// Modules returns every module sorted by name.
func (r *Registry) Modules() []*domain.Module {
	return r.project.Modules
}

// Module looks up a module by name.
func (r *Registry) Module(name string) (*domain.Module, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrModuleNotFound, "lookup module"), "module", name)
	}
	return m, nil
}

// BuildDependencies returns the modules m needs built first.
func (r *Registry) BuildDependencies(m *domain.Module) ([]*domain.Module, error) {
	return r.lookupAll(m, m.BuildDependencies)
}

// ServiceDependencies returns the modules m needs deployed first.
func (r *Registry) ServiceDependencies(m *domain.Module) ([]*domain.Module, error) {
	return r.lookupAll(m, m.ServiceDependencies)
}

// ServiceDependants returns the modules that declare m as a service dependency.
func (r *Registry) ServiceDependants(m *domain.Module) []*domain.Module {
	var out []*domain.Module
	for _, other := range r.project.Modules {
		if other.DependsOnService(m.Name) {
			out = append(out, other)
		}
	}
	return out
}

// Select resolves names to modules. An empty list selects every module.
func (r *Registry) Select(names []string) ([]*domain.Module, error) {
	if len(names) == 0 {
		return slices.Clone(r.project.Modules), nil
	}
	out := make([]*domain.Module, 0, len(names))
	for _, name := range names {
		m, err := r.Module(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Registry) lookupAll(m *domain.Module, names []string) ([]*domain.Module, error) {
	out := make([]*domain.Module, 0, len(names))
	for _, name := range names {
		dep, ok := r.byName[name]
		if !ok {
			err := zerr.With(zerr.Wrap(domain.ErrMissingDependency, "resolve dependencies"), "module", m.Name)
			return nil, zerr.With(err, "missing_dependency", name)
		}
		out = append(out, dep)
	}
	return out, nil
}
