package ports

import "go.trai.ch/garden/internal/core/domain"

// ModuleRegistry answers questions about the declared module set.
//
//go:generate mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type ModuleRegistry interface {
	// Modules returns every module sorted by name.
	Modules() []*domain.Module

	// Module looks up a module by name.
	Module(name string) (*domain.Module, error)

	// BuildDependencies returns the modules m needs built first.
	BuildDependencies(m *domain.Module) ([]*domain.Module, error)

	// ServiceDependencies returns the modules m needs deployed first.
	ServiceDependencies(m *domain.Module) ([]*domain.Module, error)

	// ServiceDependants returns the modules that declare m as a service dependency.
	ServiceDependants(m *domain.Module) []*domain.Module
}
