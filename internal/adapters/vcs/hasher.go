// Package vcs lists module files and reports working tree state.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Hasher computes content hashes of files.
type Hasher struct {
	limit int
}

// NewHasher creates a Hasher that hashes up to runtime.NumCPU files at once.
func NewHasher() *Hasher {
	return &Hasher{limit: runtime.NumCPU()}
}

// HashFile returns the xxhash64 of a file's content as 16 lowercase hex characters.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	digest := xxhash.New()
	if _, err := io.Copy(digest, f); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrFileHashFailed, err.Error()), "path", path)
	}

	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// HashFiles hashes every file in rels, relative to dir, and returns them sorted by path.
// Files that no longer exist and directories are dropped.
func (h *Hasher) HashFiles(ctx context.Context, dir string, rels []string) ([]domain.FileHash, error) {
	hashes := make([]string, len(rels))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.limit)

	for i, rel := range rels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(dir, filepath.FromSlash(rel))
			if info, err := os.Stat(full); err == nil && info.IsDir() {
				// Submodules are listed by git as single entries.
				return nil
			}
			sum, err := h.HashFile(full)
			if err != nil {
				if errors.Is(err, iofs.ErrNotExist) {
					return nil
				}
				return zerr.With(zerr.Wrap(domain.ErrFileHashFailed, err.Error()), "path", rel)
			}
			hashes[i] = sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]domain.FileHash, 0, len(rels))
	for i, rel := range rels {
		if hashes[i] == "" {
			continue
		}
		files = append(files, domain.FileHash{Path: filepath.ToSlash(rel), Hash: hashes[i]})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return files, nil
}
