package vcs

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.VCS = (*Git)(nil)

// Git implements ports.VCS using the git command line.
type Git struct {
	binary string
	hasher *Hasher
	ignore *Ignore
}

// NewGit creates a Git adapter. ignore may be nil; .gitignore rules are applied by git itself.
func NewGit(hasher *Hasher, ignore *Ignore) *Git {
	return &Git{binary: "git", hasher: hasher, ignore: ignore}
}

// Files lists tracked and untracked-but-not-ignored files below path and hashes them.
// Tracked files deleted from the working tree are dropped.
func (g *Git) Files(ctx context.Context, path string, include, exclude []string) ([]domain.FileHash, error) {
	out, err := g.run(ctx, path, "ls-files", "-z", "--cached", "--others", "--exclude-standard", "--", ".")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var rels []string
	for _, rel := range strings.Split(string(out), "\x00") {
		if rel == "" {
			continue
		}
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		if g.ignore.Match(filepath.Join(path, filepath.FromSlash(rel)), false) {
			continue
		}
		if !Filter(rel, include, exclude) {
			continue
		}
		rels = append(rels, rel)
	}

	return g.hasher.HashFiles(ctx, path, rels)
}

// ModifiedSince reports whether path has uncommitted or untracked changes.
func (g *Git) ModifiedSince(ctx context.Context, path string) (bool, error) {
	out, err := g.run(ctx, path, "status", "--porcelain", "--untracked-files=normal", "--", ".")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// IsRepository reports whether path is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context, path string) bool {
	out, err := g.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func (g *Git) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary, append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		sentinel := domain.ErrVCSFailed
		if strings.Contains(msg, "not a git repository") {
			sentinel = domain.ErrNotARepository
		}
		wrapped := zerr.Wrap(sentinel, "git "+args[0])
		wrapped = zerr.With(wrapped, "path", dir)
		if msg != "" {
			wrapped = zerr.With(wrapped, "stderr", msg)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			wrapped = zerr.With(wrapped, "exit_code", exitErr.ExitCode())
		}
		return nil, wrapped
	}
	return stdout.Bytes(), nil
}
