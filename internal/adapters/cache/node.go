package cache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/garden/internal/core/ports"
)

// NodeID is the unique identifier for the scoped cache Graft node.
const NodeID graft.ID = "adapter.scoped_cache"

func init() {
	graft.Register(graft.Node[ports.ScopedCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ScopedCache, error) {
			return New(), nil
		},
	})
}
