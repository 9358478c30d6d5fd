package ports

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
)

// ProcessOptions tunes one scheduler run.
type ProcessOptions struct {
	// ConcurrencyLimit bounds in-flight tasks. Zero or less means unbounded.
	ConcurrencyLimit int
}

// TaskScheduler executes task graphs.
//
//go:generate mockgen -source=scheduler.go -destination=mocks/mock_scheduler.go -package=mocks
type TaskScheduler interface {
	// Process runs roots and every transitive dependency. Partial failure is reported in the
	// results, not as an error; only a cyclic graph or a canceled run returns an error.
	Process(ctx context.Context, roots []Task, opts ProcessOptions) (domain.Results, error)
}
