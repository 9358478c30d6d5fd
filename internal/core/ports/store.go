package ports

import (
	"context"

	"go.trai.ch/garden/internal/core/domain"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// BuildInfoStore defines the interface for storing and retrieving build information.
type BuildInfoStore interface {
	// Get retrieves the build info for a given task key.
	// Returns nil, nil if not found.
	Get(key domain.TaskKey) (*domain.BuildInfo, error)

	// Put stores the build info.
	Put(info domain.BuildInfo) error
}

// ResultHistory persists task results across runs.
type ResultHistory interface {
	// Record stores every result of one scheduler run.
	Record(ctx context.Context, runID string, results domain.Results) error

	// Latest returns the most recent stored result for key.
	// It returns an error wrapping domain.ErrResultNotFound when there is none.
	Latest(ctx context.Context, key domain.TaskKey) (*domain.StoredResult, error)

	// Runs lists the most recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
