package config

import (
	"context"
	"os"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the config Graft node.
const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[*domain.CacheConfig]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*domain.CacheConfig, error) {
			cwd, err := os.Getwd()
			if err != nil {
				cwd = "."
			}
			return NewLoader(nil).Load(cwd)
		},
	})
}
