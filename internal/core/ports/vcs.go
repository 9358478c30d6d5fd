package ports

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
)

// VCS lists and inspects the files that make up a module.
//
//go:generate mockgen -source=vcs.go -destination=mocks/mock_vcs.go -package=mocks
type VCS interface {
	// Files returns the tracked and untracked-but-not-ignored files under path with their
	// content hashes. Paths are relative to path and use forward slashes.
	Files(ctx context.Context, path string, include, exclude []string) ([]domain.FileHash, error)

	// ModifiedSince reports whether path has uncommitted or untracked changes.
	ModifiedSince(ctx context.Context, path string) (bool, error)
}
