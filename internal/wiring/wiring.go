// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/garden/internal/adapters/cache"
	_ "go.trai.ch/garden/internal/adapters/config"
	_ "go.trai.ch/garden/internal/adapters/logger"
	_ "go.trai.ch/garden/internal/adapters/settings"
	_ "go.trai.ch/garden/internal/adapters/shell"
	_ "go.trai.ch/garden/internal/adapters/vcs"
	_ "go.trai.ch/garden/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/garden/internal/app"
)
