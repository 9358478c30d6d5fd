package ports

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
)

// VersionResolver computes content versions of modules.
//
//go:generate mockgen -source=version.go -destination=mocks/mock_version.go -package=mocks
type VersionResolver interface {
	// ResolveVersion returns the version of m combined with the versions of deps.
	ResolveVersion(ctx context.Context, m *domain.Module, deps []*domain.Module) (*domain.ModuleVersion, error)
}
