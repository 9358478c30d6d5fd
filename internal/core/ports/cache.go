package ports

// ScopedCache is a key/value store whose entries are tagged with filesystem path contexts.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ScopedCache interface {
	// Get returns the value stored under key.
	Get(key []string) (any, bool)

	// Set stores value under key, tagged with every context.
	Set(key []string, value any, contexts ...string)

	// Invalidate removes every entry tagged with exactly context.
	Invalidate(context string)

	// InvalidateUp removes every entry tagged with context, an ancestor of it or a path below it.
	InvalidateUp(context string)

	// InvalidateDown removes every entry tagged with context or a descendant of it.
	InvalidateDown(context string)
}
