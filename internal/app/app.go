// Package app implements the application layer for the enginecache CLI.
package app

import (
	"context"

	"go.trai.ch/zerr"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"github.com/accelforge/enginecache/internal/engine/cache"
)

// App exposes cache maintenance operations to the CLI. The compilation
// pipeline itself talks to cache.Manager directly.
type App struct {
	manager *cache.Manager
	logger  ports.Logger
	cfg     *domain.CacheConfig
}

// New creates a new App instance.
func New(manager *cache.Manager, log ports.Logger, cfg *domain.CacheConfig) *App {
	return &App{
		manager: manager,
		logger:  log,
		cfg:     cfg,
	}
}

// Config returns the resolved cache configuration.
func (a *App) Config() domain.CacheConfig {
	return *a.cfg
}

// Stats returns a point-in-time summary of the cache.
func (a *App) Stats(_ context.Context) cache.Stats {
	return a.manager.Stats()
}

// Clean removes every cached entry.
func (a *App) Clean(_ context.Context) error {
	if err := a.manager.Clear(); err != nil {
		return zerr.Wrap(err, "failed to clean cache")
	}
	return nil
}

// Invalidate removes the entry for the given hex fingerprint.
func (a *App) Invalidate(_ context.Context, fingerprint string) error {
	fp, err := domain.ParseFingerprint(fingerprint)
	if err != nil {
		return err
	}
	return a.manager.Invalidate(fp)
}
