// Package tasks implements the schedulable task types and the action handler chains they run.
package tasks

import (
	"context"
	"sync"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.Task = (*task)(nil)

// task is the single ports.Task implementation. Behavior per type is injected by the Factory.
type task struct {
	typ     domain.TaskType
	name    string
	key     domain.TaskKey
	id      domain.TaskID
	force   bool
	version string

	dependencies func(ctx context.Context) ([]ports.Task, error)
	process      func(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error)

	once    sync.Once
	deps    []ports.Task
	depsErr error
}

func (t *task) Type() domain.TaskType { return t.typ }
func (t *task) Name() string          { return t.name }
func (t *task) Key() domain.TaskKey   { return t.key }
func (t *task) ID() domain.TaskID     { return t.id }
func (t *task) Force() bool           { return t.force }
func (t *task) Version() string       { return t.version }

// Dependencies computes the dependency tasks on first call and returns the same slice after.
func (t *task) Dependencies(ctx context.Context) ([]ports.Task, error) {
	t.once.Do(func() {
		if t.dependencies != nil {
			t.deps, t.depsErr = t.dependencies(ctx)
		}
	})
	return t.deps, t.depsErr
}

func (t *task) Process(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
	return t.process(ctx, deps)
}
