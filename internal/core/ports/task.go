package ports

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
)

// Task is a schedulable unit of work.
//
//go:generate mockgen -source=task.go -destination=mocks/mock_task.go -package=mocks
type Task interface {
	Type() domain.TaskType
	Name() string
	Key() domain.TaskKey
	ID() domain.TaskID
	Force() bool
	// Version is the content version the task is pinned to, empty when not applicable.
	Version() string

	// Dependencies returns the tasks that must complete first. It is computed once per instance.
	Dependencies(ctx context.Context) ([]Task, error)

	// Process performs the work given the results of its dependencies keyed by dependency key.
	Process(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error)
}
