// Package watcher turns filesystem notifications into module level change notifications.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.Watcher = (*Watcher)(nil)

// skipDirectories are directories that are never watched.
var skipDirectories = map[string]bool{
	".git":               true,
	".jj":                true,
	"node_modules":       true,
	domain.GardenDirName: true,
}

const eventChannelBuffer = 100

// Watcher implements recursive file system watching using fsnotify.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	events    chan domain.WatchEvent

	mu   sync.Mutex
	dirs map[string]struct{}
}

// NewWatcher creates a new file system watcher.
func NewWatcher(logger ports.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWatcherStartFailed, err)
	}
	return &Watcher{
		fsWatcher: w,
		logger:    logger,
		events:    make(chan domain.WatchEvent, eventChannelBuffer),
		dirs:      make(map[string]struct{}),
	}, nil
}

// Start begins watching the given root directory recursively.
// Files present before Start never produce events.
func (w *Watcher) Start(ctx context.Context, root string) error {
	for dir := range watchRecursively(root) {
		if err := w.add(dir); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWatcherStartFailed, err)
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events returns an iterator of file system events.
func (w *Watcher) Events() iter.Seq[domain.WatchEvent] {
	return func(yield func(domain.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) add(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.dirs[dir] = struct{}{}
	w.mu.Unlock()
	return nil
}

// forget drops dir and everything below it from the watched set and reports whether dir was watched.
func (w *Watcher) forget(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, watched := w.dirs[dir]
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return watched
}

// watchRecursively yields root and every directory below it that is not skipped.
func watchRecursively(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // Skip unreadable directories
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && skipDirectories[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			watchEvent, ok := w.convertEvent(event)
			if !ok {
				continue
			}

			if watchEvent.Kind == domain.WatchAddDir {
				for dir := range watchRecursively(event.Name) {
					_ = w.add(dir)
				}
			}

			select {
			case w.events <- watchEvent:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(fmt.Sprintf("watcher: file system error: %v", err))
		}
	}
}

// convertEvent maps an fsnotify event to a WatchEvent kind.
// Removed paths are classified as directories when they were being watched.
func (w *Watcher) convertEvent(event fsnotify.Event) (domain.WatchEvent, bool) {
	path := event.Name
	if skipDirectories[filepath.Base(path)] {
		return domain.WatchEvent{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return domain.WatchEvent{}, false
		}
		if info.IsDir() {
			return domain.WatchEvent{Kind: domain.WatchAddDir, Path: path}, true
		}
		return domain.WatchEvent{Kind: domain.WatchAdd, Path: path}, true

	case event.Has(fsnotify.Write):
		return domain.WatchEvent{Kind: domain.WatchChange, Path: path}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.forget(path) {
			return domain.WatchEvent{Kind: domain.WatchUnlinkDir, Path: path}, true
		}
		return domain.WatchEvent{Kind: domain.WatchUnlink, Path: path}, true
	}

	return domain.WatchEvent{}, false
}
