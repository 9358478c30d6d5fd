package vcs

import (
	"bufio"
	"errors"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

// alwaysIgnored directories are never part of a module.
var alwaysIgnored = map[string]struct{}{
	".git":               {},
	".jj":                {},
	domain.GardenDirName: {},
}

// Ignore holds ignore rules anchored at a root directory.
type Ignore struct {
	root  string
	rules []ignoreRule
}

type ignoreRule struct {
	pattern  string
	anchored bool
	dirOnly  bool
}

// LoadIgnore reads .gardenignore and .gitignore at root plus any extra patterns.
// Missing files are not an error.
func LoadIgnore(root string, extra ...string) (*Ignore, error) {
	ig := &Ignore{root: filepath.Clean(root)}
	for _, name := range []string{domain.IgnoreFileName, domain.GitIgnoreFileName} {
		if err := ig.loadFile(filepath.Join(root, name)); err != nil {
			return nil, err
		}
	}
	for _, p := range extra {
		ig.Add(p)
	}
	return ig, nil
}

func (ig *Ignore) loadFile(p string) error {
	f, err := os.Open(p) //nolint:gosec // Path is derived from the project root
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", p)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.Add(scanner.Text())
	}
	return scanner.Err()
}

// Add appends one ignore pattern line. Blank lines, comments and negations are skipped.
func (ig *Ignore) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return
	}
	r := ignoreRule{}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") {
		r.anchored = true
	}
	r.pattern = line
	ig.rules = append(ig.rules, r)
}

// Root returns the directory the rules are anchored at.
func (ig *Ignore) Root() string {
	return ig.root
}

// Match reports whether the absolute path p is ignored.
func (ig *Ignore) Match(p string, isDir bool) bool {
	if ig == nil {
		return false
	}
	rel, err := filepath.Rel(ig.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return ig.MatchRel(filepath.ToSlash(rel), isDir)
}

// MatchRel reports whether a forward-slash path relative to the root is ignored.
// A path is ignored when it or any of its parent directories matches a rule.
func (ig *Ignore) MatchRel(rel string, isDir bool) bool {
	if ig == nil {
		return false
	}
	segments := strings.Split(rel, "/")
	for i := range segments {
		if _, ok := alwaysIgnored[segments[i]]; ok && (i < len(segments)-1 || isDir) {
			return true
		}
		sub := strings.Join(segments[:i+1], "/")
		dir := i < len(segments)-1 || isDir
		for _, r := range ig.rules {
			if r.dirOnly && !dir {
				continue
			}
			if r.anchored {
				if MatchGlob(r.pattern, sub) {
					return true
				}
				continue
			}
			if ok, _ := path.Match(r.pattern, segments[i]); ok {
				return true
			}
		}
	}
	return false
}
