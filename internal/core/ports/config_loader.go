package ports

import "go.trai.ch/garden/internal/core/domain"

// ConfigLoader defines the interface for loading the project configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds the project config at or above cwd and loads every module below it.
	Load(cwd string) (*domain.Project, error)

	// DiscoverRoot walks up from cwd to the directory containing garden.yml.
	DiscoverRoot(cwd string) (string, error)
}
