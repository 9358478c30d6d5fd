// Package cache implements the scoped invalidation cache.
package cache

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unique"

	"go.trai.ch/garden/internal/adapters/metrics"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.ScopedCache = (*ScopedCache)(nil)

// keySeparator joins key parts. It cannot appear in paths or names.
const keySeparator = "\x00"

// ScopedCache implements ports.ScopedCache.
// Every entry is tagged with one or more path contexts; invalidating any of them removes the entry.
type ScopedCache struct {
	mu        sync.RWMutex
	entries   map[unique.Handle[string]]*entry
	byContext map[string]map[unique.Handle[string]]struct{}
}

type entry struct {
	key      []string
	value    any
	contexts []string
}

// New creates an empty cache.
func New() *ScopedCache {
	return &ScopedCache{
		entries:   make(map[unique.Handle[string]]*entry),
		byContext: make(map[string]map[unique.Handle[string]]struct{}),
	}
}

// Get returns the value stored under key.
func (c *ScopedCache) Get(key []string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[makeKey(key)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key tagged with contexts, replacing any previous entry and its contexts.
func (c *ScopedCache) Set(key []string, value any, contexts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := makeKey(key)
	c.removeLocked(h)

	normalized := make([]string, 0, len(contexts))
	for _, ctx := range contexts {
		normalized = append(normalized, NormalizeContext(ctx))
	}

	c.entries[h] = &entry{
		key:      append([]string(nil), key...),
		value:    value,
		contexts: normalized,
	}
	for _, ctx := range normalized {
		keys, ok := c.byContext[ctx]
		if !ok {
			keys = make(map[unique.Handle[string]]struct{})
			c.byContext[ctx] = keys
		}
		keys[h] = struct{}{}
	}
}

// Delete removes the entry stored under key.
func (c *ScopedCache) Delete(key []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(makeKey(key))
}

// Invalidate removes every entry tagged with exactly context.
func (c *ScopedCache) Invalidate(context string) {
	target := NormalizeContext(context)
	c.invalidate("exact", func(ctx string) bool { return ctx == target })
}

// InvalidateUp removes every entry tagged with context or an ancestor directory of context.
// Entries tagged below context are removed as well, so invalidating a module root drops the
// file level entries inside it.
func (c *ScopedCache) InvalidateUp(context string) {
	target := NormalizeContext(context)
	c.invalidate("up", func(ctx string) bool { return IsWithin(ctx, target) || IsWithin(target, ctx) })
}

// InvalidateDown removes every entry tagged with context or a descendant of context.
func (c *ScopedCache) InvalidateDown(context string) {
	target := NormalizeContext(context)
	c.invalidate("down", func(ctx string) bool { return IsWithin(target, ctx) })
}

// Clear removes every entry.
func (c *ScopedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[unique.Handle[string]]*entry)
	c.byContext = make(map[string]map[unique.Handle[string]]struct{})
	metrics.CacheInvalidations.WithLabelValues("clear").Add(float64(n))
}

// Len returns the number of entries.
func (c *ScopedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns every stored key, sorted.
func (c *ScopedCache) Keys() [][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([][]string, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, append([]string(nil), e.key...))
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.Join(keys[i], keySeparator) < strings.Join(keys[j], keySeparator)
	})
	return keys
}

func (c *ScopedCache) invalidate(mode string, match func(ctx string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []unique.Handle[string]
	for ctx, keys := range c.byContext {
		if !match(ctx) {
			continue
		}
		for h := range keys {
			doomed = append(doomed, h)
		}
	}

	removed := 0
	for _, h := range doomed {
		if c.removeLocked(h) {
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheInvalidations.WithLabelValues(mode).Add(float64(removed))
	}
}

// removeLocked deletes an entry and its context index rows. c.mu must be held.
func (c *ScopedCache) removeLocked(h unique.Handle[string]) bool {
	e, ok := c.entries[h]
	if !ok {
		return false
	}
	delete(c.entries, h)
	for _, ctx := range e.contexts {
		keys := c.byContext[ctx]
		delete(keys, h)
		if len(keys) == 0 {
			delete(c.byContext, ctx)
		}
	}
	return true
}

func makeKey(key []string) unique.Handle[string] {
	return unique.Make(strings.Join(key, keySeparator))
}

// NormalizeContext converts p to a clean forward-slash path without a trailing separator.
func NormalizeContext(p string) string {
	p = filepath.ToSlash(p)
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

// IsWithin reports whether p equals ancestor or lies below it.
// Both arguments must be normalized.
func IsWithin(ancestor, p string) bool {
	if ancestor == p {
		return true
	}
	switch ancestor {
	case "/":
		return strings.HasPrefix(p, "/")
	case ".":
		return !strings.HasPrefix(p, "/") && p != ".." && !strings.HasPrefix(p, "../")
	}
	return strings.HasPrefix(p, ancestor+"/")
}
