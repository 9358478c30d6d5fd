package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/garden/internal/adapters/cache"
	"go.trai.ch/garden/internal/adapters/logger"
	"go.trai.ch/garden/internal/core/ports"
)

// NodeID is the unique identifier for the change watcher Graft node.
const NodeID graft.ID = "adapter.change_watcher"

func init() {
	graft.Register(graft.Node[ports.ChangeWatcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cache.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.ChangeWatcher, error) {
			c, err := graft.Dep[ports.ScopedCache](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewChangeWatcher(c, log), nil
		},
	})
}
