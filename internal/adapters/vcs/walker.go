package vcs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Walker yields the files below a directory, skipping ignored paths.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields forward-slash paths relative to root for every file that is not ignored.
// Unreadable entries are skipped.
func (w *Walker) WalkFiles(root string, ignore *Ignore) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && p != root {
					return filepath.SkipDir
				}
				return nil
			}
			if p == root {
				return nil
			}

			if ignore.Match(p, d.IsDir()) || isAlwaysIgnoredDir(d) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil //nolint:nilerr // Skip paths that cannot be made relative
			}
			if !yield(filepath.ToSlash(rel)) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func isAlwaysIgnoredDir(d fs.DirEntry) bool {
	if !d.IsDir() {
		return false
	}
	_, ok := alwaysIgnored[d.Name()]
	return ok
}
