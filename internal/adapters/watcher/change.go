package watcher

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/garden/internal/adapters/metrics"
	"go.trai.ch/garden/internal/adapters/vcs"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ChangeWatcher = (*ChangeWatcher)(nil)

// Classifications reported by the watch events metric.
const (
	classStructural = "structural"
	classModule     = "module"
	classIgnored    = "ignored"
	classUnowned    = "unowned"
)

// WatcherFactory creates the raw watcher used for one watched root.
type WatcherFactory func() (ports.Watcher, error)

// ChangeWatcher classifies filesystem events against the module set, invalidates the scoped
// cache and notifies the caller.
type ChangeWatcher struct {
	cache      ports.ScopedCache
	logger     ports.Logger
	newWatcher WatcherFactory
	ignore     []string
	walker     *vcs.Walker

	mu      sync.RWMutex
	modules []*domain.Module

	roots    []watchedRoot
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type watchedRoot struct {
	path    string
	ignore  *vcs.Ignore
	watcher ports.Watcher
}

// Option configures a ChangeWatcher.
type Option func(*ChangeWatcher)

// WithIgnorePatterns adds ignore globs on top of the ignore files found at each root.
func WithIgnorePatterns(patterns ...string) Option {
	return func(cw *ChangeWatcher) {
		cw.ignore = append(cw.ignore, patterns...)
	}
}

// WithWatcherFactory replaces the fsnotify watcher.
func WithWatcherFactory(f WatcherFactory) Option {
	return func(cw *ChangeWatcher) {
		cw.newWatcher = f
	}
}

// SetIgnorePatterns replaces the extra ignore globs. It affects roots started afterwards.
func (cw *ChangeWatcher) SetIgnorePatterns(patterns ...string) {
	cw.ignore = slices.Clone(patterns)
}

// NewChangeWatcher creates a ChangeWatcher that invalidates cache.
func NewChangeWatcher(cache ports.ScopedCache, logger ports.Logger, opts ...Option) *ChangeWatcher {
	cw := &ChangeWatcher{
		cache:  cache,
		logger: logger,
		walker: vcs.NewWalker(),
	}
	cw.newWatcher = func() (ports.Watcher, error) {
		return NewWatcher(logger)
	}
	for _, opt := range opts {
		opt(cw)
	}
	return cw
}

// Start watches every path and calls onChange for each classified change.
func (cw *ChangeWatcher) Start(
	ctx context.Context,
	paths []string,
	modules []*domain.Module,
	onChange ports.ChangeHandler,
) error {
	cw.SetModules(modules)

	ctx, cw.cancel = context.WithCancel(ctx)

	for _, p := range paths {
		root, err := filepath.Abs(p)
		if err != nil {
			return cw.abort(zerr.With(zerr.Wrap(err, "resolve watch root"), "path", p))
		}

		ig, err := vcs.LoadIgnore(root, cw.ignore...)
		if err != nil {
			return cw.abort(err)
		}

		w, err := cw.newWatcher()
		if err != nil {
			return cw.abort(zerr.With(fmt.Errorf("%w: %w", domain.ErrWatcherStartFailed, err), "path", root))
		}
		if err := w.Start(ctx, root); err != nil {
			_ = w.Stop()
			return cw.abort(zerr.With(fmt.Errorf("%w: %w", domain.ErrWatcherStartFailed, err), "path", root))
		}

		wr := watchedRoot{path: root, ignore: ig, watcher: w}
		cw.roots = append(cw.roots, wr)
		cw.wg.Go(func() {
			for ev := range w.Events() {
				cw.handle(wr, ev, onChange)
			}
		})
	}

	return nil
}

func (cw *ChangeWatcher) abort(err error) error {
	_ = cw.Stop()
	return err
}

// SetModules replaces the module set used for classification.
func (cw *ChangeWatcher) SetModules(modules []*domain.Module) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.modules = modules
}

// Stop stops every watcher and waits for pending events to be handled.
func (cw *ChangeWatcher) Stop() error {
	var errs []error
	cw.stopOnce.Do(func() {
		if cw.cancel != nil {
			cw.cancel()
		}
		for _, r := range cw.roots {
			if err := r.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		cw.wg.Wait()
	})
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// handle classifies ev and runs the resulting invalidation and notification.
func (cw *ChangeWatcher) handle(root watchedRoot, ev domain.WatchEvent, onChange ports.ChangeHandler) {
	module, structural, class := cw.classify(root, ev)
	metrics.WatchEvents.WithLabelValues(class).Inc()

	switch {
	case structural:
		cw.logger.Debug(fmt.Sprintf("structural change: %s %s", ev.Kind, ev.Path))
		for _, m := range cw.snapshot() {
			cw.cache.InvalidateUp(m.Path)
		}
		onChange(nil, true)
	case module != nil:
		cw.logger.Debug(fmt.Sprintf("%s changed: %s %s", module.Name, ev.Kind, ev.Path))
		cw.cache.InvalidateUp(module.Path)
		onChange(module, false)
	}
}

// classify applies the classification rules in priority order.
func (cw *ChangeWatcher) classify(root watchedRoot, ev domain.WatchEvent) (*domain.Module, bool, string) {
	if root.ignore.Match(ev.Path, ev.Kind.IsDir()) {
		return nil, false, classIgnored
	}

	modules := cw.snapshot()

	switch ev.Kind {
	case domain.WatchAdd, domain.WatchChange, domain.WatchUnlink:
		base := filepath.Base(ev.Path)
		if domain.IsConfigFileName(base) || domain.IsIgnoreFileName(base) {
			return nil, true, classStructural
		}

	case domain.WatchAddDir:
		if cw.containsModuleConfig(root, ev.Path) {
			return nil, true, classStructural
		}

	case domain.WatchUnlinkDir:
		for _, m := range modules {
			if isWithin(m.Path, ev.Path) {
				return nil, true, classStructural
			}
		}
	}

	if m := owner(modules, ev.Path); m != nil {
		return m, false, classModule
	}
	return nil, false, classUnowned
}

func (cw *ChangeWatcher) containsModuleConfig(root watchedRoot, dir string) bool {
	for rel := range cw.walker.WalkFiles(dir, root.ignore) {
		if path.Base(rel) == domain.ModuleFileName {
			return true
		}
	}
	return false
}

func (cw *ChangeWatcher) snapshot() []*domain.Module {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.modules
}

// owner returns the module with the deepest root containing p.
func owner(modules []*domain.Module, p string) *domain.Module {
	var best *domain.Module
	for _, m := range modules {
		if isWithin(p, m.Path) && (best == nil || len(m.Path) > len(best.Path)) {
			best = m
		}
	}
	return best
}

// isWithin reports whether p equals dir or lies below it.
func isWithin(p, dir string) bool {
	p = filepath.Clean(p)
	dir = filepath.Clean(dir)
	if p == dir {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
