// Package locks serializes access to external tools and guards idempotent resource creation.
package locks

import (
	"context"
	"sync"
)

// Named is a set of mutexes keyed by name. The zero value is ready to use.
type Named struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewNamed creates an empty set of named locks.
func NewNamed() *Named {
	return &Named{}
}

// Lock acquires the lock for name, blocking until it is free or ctx is done.
// The returned function releases it and must be called exactly once.
func (n *Named) Lock(ctx context.Context, name string) (func(), error) {
	slot := n.slot(name)

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock acquires the lock for name only if it is free.
func (n *Named) TryLock(name string) (func(), bool) {
	slot := n.slot(name)

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, true
	default:
		return nil, false
	}
}

func (n *Named) slot(name string) chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.slots == nil {
		n.slots = make(map[string]chan struct{})
	}
	slot, ok := n.slots[name]
	if !ok {
		slot = make(chan struct{}, 1)
		n.slots[name] = slot
	}
	return slot
}
