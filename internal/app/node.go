package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/garden/internal/adapters/cache"    //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/settings" //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/shell"    //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/vcs"      //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/adapters/watcher"  //nolint:depguard // Wired in app layer
	"go.trai.ch/garden/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			shell.NodeID,
			logger.NodeID,
			cache.NodeID,
			vcs.NodeID,
			watcher.NodeID,
			settings.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}

			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			scoped, err := graft.Dep[ports.ScopedCache](ctx)
			if err != nil {
				return nil, err
			}

			files, err := graft.Dep[ports.VCS](ctx)
			if err != nil {
				return nil, err
			}

			changes, err := graft.Dep[ports.ChangeWatcher](ctx)
			if err != nil {
				return nil, err
			}

			s, err := graft.Dep[settings.Settings](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, executor, log, scoped, files, changes, s), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: app, Logger: log}, nil
		},
	})
}
