package diskstore

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/accelforge/enginecache/internal/adapters/blobzip"
	"github.com/accelforge/enginecache/internal/adapters/config"
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
)

// NodeID is the unique identifier for the artifact store Graft node.
const NodeID graft.ID = "adapter.artifact_store"

func init() {
	graft.Register(graft.Node[ports.ArtifactStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ArtifactStore, error) {
			cfg, err := graft.Dep[*domain.CacheConfig](ctx)
			if err != nil {
				return nil, err
			}

			store, err := NewStore(cfg.CacheRoot)
			if err != nil {
				return nil, err
			}
			if cfg.Compress {
				zipped, err := blobzip.Wrap(store)
				if err != nil {
					return nil, err
				}
				return zipped, nil
			}
			return store, nil
		},
	})
}
