// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/accelforge/enginecache/internal/adapters/config"
	_ "github.com/accelforge/enginecache/internal/adapters/diskstore"
	_ "github.com/accelforge/enginecache/internal/adapters/logger"
	_ "github.com/accelforge/enginecache/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "github.com/accelforge/enginecache/internal/app"
	_ "github.com/accelforge/enginecache/internal/engine/cache"
)
