package vcs

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.VCS = (*Walk)(nil)

// Walk implements ports.VCS for trees that are not under version control.
// It lists every non-ignored file and never reports uncommitted changes.
type Walk struct {
	walker *Walker
	hasher *Hasher
	ignore *Ignore
}

// NewWalk creates a Walk adapter. ignore may be nil.
func NewWalk(hasher *Hasher, ignore *Ignore) *Walk {
	return &Walk{walker: NewWalker(), hasher: hasher, ignore: ignore}
}

// Files lists and hashes the files below path.
func (w *Walk) Files(ctx context.Context, path string, include, exclude []string) ([]domain.FileHash, error) {
	var rels []string
	for rel := range w.walker.WalkFiles(path, w.ignore) {
		if Filter(rel, include, exclude) {
			rels = append(rels, rel)
		}
	}
	return w.hasher.HashFiles(ctx, path, rels)
}

// ModifiedSince always reports false: without history every version is content based.
func (w *Walk) ModifiedSince(_ context.Context, _ string) (bool, error) {
	return false, nil
}
