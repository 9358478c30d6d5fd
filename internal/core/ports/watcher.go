package ports

import (
	"context"
	"iter"

	"go.trai.ch/garden/internal/core/domain"
)

//go:generate mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks

// Watcher defines the interface for watching file system changes.
type Watcher interface {
	// Start begins watching the given root directory recursively.
	// It returns an error if the watcher fails to start.
	Start(ctx context.Context, root string) error
	// Stop stops the watcher and releases all resources.
	Stop() error
	// Events returns an iterator of file system events.
	Events() iter.Seq[domain.WatchEvent]
}

// ChangeHandler is notified when a watched change affects a module or the module topology.
// module is nil for structural changes.
type ChangeHandler func(module *domain.Module, structural bool)

// ChangeWatcher classifies filesystem changes against the module set and invalidates caches.
type ChangeWatcher interface {
	// Start watches paths and calls onChange for every classified change.
	Start(ctx context.Context, paths []string, modules []*domain.Module, onChange ChangeHandler) error
	// SetModules replaces the module set used for classification.
	SetModules(modules []*domain.Module)
	// Stop stops watching.
	Stop() error
}
