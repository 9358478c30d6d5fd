// Package version computes content-addressed module versions.
package version

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/garden/internal/adapters/metrics"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.VersionResolver = (*Resolver)(nil)

// cacheNamespace is the first key part of every cached module version.
const cacheNamespace = "moduleVersions"

// Resolver implements ports.VersionResolver on top of a VCS and a scoped cache.
type Resolver struct {
	vcs      ports.VCS
	cache    ports.ScopedCache
	registry ports.ModuleRegistry
	now      func() time.Time
}

// cached is what the resolver stores: the version and every path it was derived from.
type cached struct {
	version  *domain.ModuleVersion
	contexts []string
}

// NewResolver creates a Resolver. The registry supplies the build dependencies of dependencies.
func NewResolver(vcs ports.VCS, cache ports.ScopedCache, registry ports.ModuleRegistry) *Resolver {
	return &Resolver{vcs: vcs, cache: cache, registry: registry, now: time.Now}
}

// WithClock replaces the wall clock used for dirty timestamps.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ResolveVersion returns the version of m combined with the versions of deps.
// Stable versions are cached per (module, sorted dependency names) and tagged with the paths of
// the module and of every transitive dependency. Dirty versions and errors are never cached.
func (r *Resolver) ResolveVersion(
	ctx context.Context, m *domain.Module, deps []*domain.Module,
) (*domain.ModuleVersion, error) {
	c, err := r.resolve(ctx, m, deps, []string{m.Name})
	if err != nil {
		return nil, err
	}
	return c.version, nil
}

func (r *Resolver) resolve(
	ctx context.Context, m *domain.Module, deps []*domain.Module, stack []string,
) (*cached, error) {
	key := CacheKey(m.Name, deps)
	if v, ok := r.cache.Get(key); ok {
		if c, ok := v.(*cached); ok {
			metrics.VersionResolutions.WithLabelValues("hit").Inc()
			return c, nil
		}
	}

	files, err := r.vcs.Files(ctx, m.Path, m.Include, m.Exclude)
	if err != nil {
		metrics.VersionResolutions.WithLabelValues("error").Inc()
		return nil, zerr.With(zerr.Wrap(err, "list module files"), "module", m.Name)
	}

	modified, err := r.vcs.ModifiedSince(ctx, m.Path)
	if err != nil {
		metrics.VersionResolutions.WithLabelValues("error").Inc()
		return nil, zerr.With(zerr.Wrap(err, "check module state"), "module", m.Name)
	}

	var dirty *time.Time
	if modified {
		ts := r.now()
		dirty = &ts
	}

	contexts := []string{m.Path}
	depVersions := make(map[string]string, len(deps))

	sorted := slices.Clone(deps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, dep := range sorted {
		if slices.Contains(stack, dep.Name) {
			err := zerr.Wrap(domain.ErrCycleDetected, "resolve dependency versions")
			return nil, zerr.With(err, "cycle", fmt.Sprint(append(slices.Clone(stack), dep.Name)))
		}

		var depDeps []*domain.Module
		if r.registry != nil {
			depDeps, err = r.registry.BuildDependencies(dep)
			if err != nil {
				return nil, zerr.With(err, "module", dep.Name)
			}
		}

		dc, err := r.resolve(ctx, dep, depDeps, append(slices.Clone(stack), dep.Name))
		if err != nil {
			return nil, err
		}

		depVersions[dep.Name] = dc.version.VersionString
		contexts = append(contexts, dc.contexts...)
		if dirty == nil && !dc.version.Stable() {
			dirty = dc.version.DirtyTimestamp
		}
	}

	v := &domain.ModuleVersion{
		VersionString:      VersionString(files, depVersions, dirty),
		DirtyTimestamp:     dirty,
		Files:              files,
		DependencyVersions: depVersions,
	}
	c := &cached{version: v, contexts: dedupe(contexts)}

	if !v.Stable() {
		metrics.VersionResolutions.WithLabelValues("dirty").Inc()
		return c, nil
	}

	metrics.VersionResolutions.WithLabelValues("miss").Inc()
	r.cache.Set(key, c, c.contexts...)
	return c, nil
}

// CacheKey returns the scoped cache key for a module resolved against deps.
func CacheKey(name string, deps []*domain.Module) []string {
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return append([]string{cacheNamespace, name}, names...)
}

// VersionString hashes sorted (path, hash) pairs, dependency versions sorted by module name and,
// for dirty trees, the dirty timestamp. The result is 16 lowercase hex characters.
func VersionString(files []domain.FileHash, depVersions map[string]string, dirty *time.Time) string {
	sortedFiles := slices.Clone(files)
	sort.Slice(sortedFiles, func(i, j int) bool { return sortedFiles[i].Path < sortedFiles[j].Path })

	d := xxhash.New()
	for _, f := range sortedFiles {
		_, _ = d.WriteString(f.Path)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(f.Hash)
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.Write([]byte{0}) // Section separator

	names := make([]string, 0, len(depVersions))
	for name := range depVersions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(depVersions[name])
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.Write([]byte{0})

	if dirty != nil {
		_, _ = d.WriteString(strconv.FormatInt(dirty.UnixNano(), 10))
		_, _ = d.Write([]byte{0})
	}

	return fmt.Sprintf("%016x", d.Sum64())
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
