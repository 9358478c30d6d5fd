package vcs

import (
	"context"
	"sync"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.VCS = (*Auto)(nil)

// Auto implements ports.VCS by using git for paths inside a work tree and a plain walk otherwise.
type Auto struct {
	hasher *Hasher

	mu     sync.RWMutex
	ignore *Ignore
	repos  map[string]bool
}

// NewAuto creates an Auto adapter without ignore rules.
func NewAuto(hasher *Hasher) *Auto {
	return &Auto{hasher: hasher, repos: make(map[string]bool)}
}

// SetIgnore replaces the ignore rules applied on top of the backend's own.
func (a *Auto) SetIgnore(ignore *Ignore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ignore = ignore
}

// Files delegates to the backend chosen for path.
func (a *Auto) Files(ctx context.Context, path string, include, exclude []string) ([]domain.FileHash, error) {
	return a.backend(ctx, path).Files(ctx, path, include, exclude)
}

// ModifiedSince delegates to the backend chosen for path.
func (a *Auto) ModifiedSince(ctx context.Context, path string) (bool, error) {
	return a.backend(ctx, path).ModifiedSince(ctx, path)
}

func (a *Auto) backend(ctx context.Context, path string) ports.VCS {
	a.mu.RLock()
	ignore := a.ignore
	isRepo, known := a.repos[path]
	a.mu.RUnlock()

	git := NewGit(a.hasher, ignore)
	if !known {
		isRepo = git.IsRepository(ctx, path)
		a.mu.Lock()
		a.repos[path] = isRepo
		a.mu.Unlock()
	}

	if isRepo {
		return git
	}
	return NewWalk(a.hasher, ignore)
}
