package locks

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CreationGuard runs each creation at most once successfully. Concurrent callers for the same
// key share one attempt; failed attempts are forgotten so a later call retries.
type CreationGuard struct {
	group   singleflight.Group
	mu      sync.RWMutex
	created map[string]struct{}
}

// NewCreationGuard creates an empty guard. One guard is owned by one run or process.
func NewCreationGuard() *CreationGuard {
	return &CreationGuard{created: make(map[string]struct{})}
}

// Ensure calls create for key unless an earlier call for key succeeded.
// The shared attempt keeps the values of ctx but not its cancellation: ctx only bounds how long
// this caller waits, so one canceled caller does not fail the others.
func (g *CreationGuard) Ensure(ctx context.Context, key string, create func(context.Context) error) error {
	if g.Created(key) {
		return nil
	}

	attemptCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		if g.Created(key) {
			return nil, nil
		}
		if err := create(attemptCtx); err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.created[key] = struct{}{}
		g.mu.Unlock()
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Created reports whether key was created successfully.
func (g *CreationGuard) Created(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.created[key]
	return ok
}

// Forget drops the record for key so the next Ensure creates it again.
func (g *CreationGuard) Forget(key string) {
	g.mu.Lock()
	delete(g.created, key)
	g.mu.Unlock()
	g.group.Forget(key)
}
