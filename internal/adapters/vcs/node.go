package vcs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/garden/internal/core/ports"
)

const (
	// HasherNodeID is the unique identifier for the file hasher Graft node.
	HasherNodeID graft.ID = "adapter.vcs.hasher"
	// AutoNodeID is the unique identifier for the auto-detecting VCS Graft node.
	AutoNodeID graft.ID = "adapter.vcs.auto"
	// NodeID is the unique identifier for the VCS port Graft node.
	NodeID graft.ID = "adapter.vcs"
)

func init() {
	graft.Register(graft.Node[*Hasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Hasher, error) {
			return NewHasher(), nil
		},
	})

	graft.Register(graft.Node[*Auto]{
		ID:        AutoNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{HasherNodeID},
		Run: func(ctx context.Context) (*Auto, error) {
			hasher, err := graft.Dep[*Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewAuto(hasher), nil
		},
	})

	graft.Register(graft.Node[ports.VCS]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{AutoNodeID},
		Run: func(ctx context.Context) (ports.VCS, error) {
			auto, err := graft.Dep[*Auto](ctx)
			if err != nil {
				return nil, err
			}
			return auto, nil
		},
	})
}
