package app

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/accelforge/enginecache/internal/adapters/config"
	"github.com/accelforge/enginecache/internal/adapters/logger"
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"github.com/accelforge/enginecache/internal/engine/cache"
)

// Components bundles everything the CLI entry point needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

// NodeID is the unique identifier for the application components Graft node.
const NodeID graft.ID = "app.components"

// jsonSwitcher is the optional logger capability for switching to JSON output.
type jsonSwitcher interface {
	SetJSON(bool)
}

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cache.NodeID, logger.NodeID, config.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			manager, err := graft.Dep[*cache.Manager](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*domain.CacheConfig](ctx)
			if err != nil {
				return nil, err
			}

			if cfg.LogJSON {
				if s, ok := log.(jsonSwitcher); ok {
					s.SetJSON(true)
				}
			}

			return &Components{
				App:    New(manager, log, cfg),
				Logger: log,
			}, nil
		},
	})
}
