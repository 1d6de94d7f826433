package cache

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/accelforge/enginecache/internal/adapters/config"
	"github.com/accelforge/enginecache/internal/adapters/diskstore"
	"github.com/accelforge/enginecache/internal/adapters/logger"
	"github.com/accelforge/enginecache/internal/adapters/telemetry"
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
)

// NodeID is the unique identifier for the cache manager Graft node.
const NodeID graft.ID = "engine.cache_manager"

func init() {
	graft.Register(graft.Node[*Manager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{diskstore.NodeID, logger.NodeID, telemetry.NodeID, config.NodeID},
		Run: func(ctx context.Context) (*Manager, error) {
			store, err := graft.Dep[ports.ArtifactStore](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*domain.CacheConfig](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(store, log, tracer, *cfg), nil
		},
	})
}
