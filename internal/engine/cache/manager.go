// Package cache implements the cache manager: lookup-before-build and
// store-after-build around a caller-supplied build function, with LRU capacity
// eviction.
package cache

import (
	"context"
	"sync"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// BuildFunc produces a fresh artifact on a cache miss. It is opaque to the
// cache: errors propagate to the caller unchanged, and the cache never
// interprets the artifact beyond storing its blobs. It may block for the full
// duration of the native compilation.
type BuildFunc func(ctx context.Context) (*domain.Artifact, error)

// Stats is a point-in-time summary of the cache.
type Stats struct {
	Entries       int
	TotalBytes    int64
	CapacityBytes int64
}

// Manager orchestrates fingerprinting, the artifact store, and eviction.
//
// Per fingerprint, at most one build runs at a time within the process: a
// second caller racing on the same fingerprint blocks and shares the first
// caller's result.
type Manager struct {
	store  ports.ArtifactStore
	logger ports.Logger
	tracer ports.Tracer
	cfg    domain.CacheConfig

	group singleflight.Group

	mu    sync.Mutex
	index *cacheIndex
}

// NewManager creates a Manager over the given store. If the store can
// enumerate its contents, the size and recency accounting is warmed from it so
// capacity enforcement covers entries that survived a restart.
func NewManager(
	store ports.ArtifactStore,
	logger ports.Logger,
	tracer ports.Tracer,
	cfg domain.CacheConfig,
) *Manager {
	m := &Manager{
		store:  store,
		logger: logger,
		tracer: tracer,
		cfg:    cfg,
		index:  newCacheIndex(),
	}

	if cfg.CapacityBytes < 0 {
		// Treated as unbounded rather than failing hard; warn once here so a
		// misconfigured pipeline is visible.
		logger.Warn("negative cache capacity treated as unbounded", "capacity_bytes", cfg.CapacityBytes)
	}

	if e, ok := store.(ports.StoreEnumerator); ok {
		entries, err := e.Enumerate()
		if err != nil {
			logger.Debug("store enumeration failed, starting with empty index", "error", err)
		}
		for _, se := range entries {
			m.index.put(se.Key, se.TotalSize)
		}
	}

	return m
}

// GetOrBuild returns the artifact for the given compilation request, building
// it with buildFn only when no reusable cached artifact exists.
//
// A store read failure is treated as a miss: the cache fails open toward
// rebuilding, never toward returning questionable data. A store write failure
// is logged and swallowed; the freshly built artifact is returned regardless.
// A fingerprinting failure is a hard error.
func (m *Manager) GetOrBuild(
	ctx context.Context,
	graph domain.GraphDescriptor,
	shapes domain.ShapeEnvelope,
	settings domain.CompilationSettings,
	buildFn BuildFunc,
) (*domain.Artifact, error) {
	fp, err := domain.ComputeFingerprint(graph, shapes, settings)
	if err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "cache.get_or_build")
	defer span.End()
	span.SetAttribute("fingerprint", fp.String())

	result, err, _ := m.group.Do(fp.String(), func() (any, error) {
		return m.getOrBuildOne(ctx, fp, span, buildFn)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.(*domain.Artifact), nil
}

// getOrBuildOne runs the single de-duplicated lookup/build/store cycle for one
// fingerprint.
func (m *Manager) getOrBuildOne(
	ctx context.Context,
	fp domain.Fingerprint,
	span ports.Span,
	buildFn BuildFunc,
) (*domain.Artifact, error) {
	if m.cfg.ReuseEnabled {
		if artifact, ok := m.lookup(fp); ok {
			span.SetAttribute("cache.hit", true)
			m.mu.Lock()
			m.index.touch(fp)
			m.mu.Unlock()
			return artifact, nil
		}
	}
	span.SetAttribute("cache.hit", false)

	// Builds are not cancelled once started; honor the context up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	artifact, err := buildFn(ctx)
	if err != nil {
		return nil, err
	}

	if m.cfg.CacheEnabled {
		m.persist(fp, artifact)
	}

	return artifact, nil
}

// lookup loads an artifact from the store. Any failure is logged at debug
// level and reported as a miss.
func (m *Manager) lookup(fp domain.Fingerprint) (*domain.Artifact, bool) {
	engine, ok, err := m.store.Load(fp, domain.SlotEngine)
	if err != nil {
		m.logger.Debug("cache load failed, treating as miss", "fingerprint", fp.String(), "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	artifact := &domain.Artifact{Engine: engine}

	metaBlob, ok, err := m.store.Load(fp, domain.SlotMetadata)
	if err != nil {
		m.logger.Debug("cache metadata load failed, treating as miss", "fingerprint", fp.String(), "error", err)
		return nil, false
	}
	if ok {
		meta, err := domain.UnmarshalArtifactMetadata(metaBlob)
		if err != nil {
			m.logger.Debug("cache metadata decode failed, treating as miss", "fingerprint", fp.String(), "error", err)
			return nil, false
		}
		artifact.Metadata = meta
	}

	return artifact, true
}

// persist stores the artifact's blobs and runs eviction. Caching is
// best-effort: every failure is logged at warning level and swallowed.
func (m *Manager) persist(fp domain.Fingerprint, artifact *domain.Artifact) {
	metaBlob, err := artifact.Metadata.Marshal()
	if err != nil {
		m.logger.Warn("skipping cache store", "fingerprint", fp.String(), "error", err)
		return
	}

	if err := m.store.Save(fp, domain.SlotEngine, artifact.Engine); err != nil {
		m.logger.Warn("failed to cache engine blob", "fingerprint", fp.String(), "error", err)
		return
	}
	if err := m.store.Save(fp, domain.SlotMetadata, metaBlob); err != nil {
		m.logger.Warn("failed to cache metadata blob", "fingerprint", fp.String(), "error", err)
		return
	}

	// Account what the backend actually holds, which differs from the blob
	// lengths when the store compresses. Warm-up from Enumerate reports the
	// same backend sizes, so the two paths stay in one unit.
	size, err := m.store.Size(fp)
	if err != nil {
		m.logger.Warn("failed to size cached entry, accounting raw blob length",
			"fingerprint", fp.String(), "error", err)
		size = int64(len(artifact.Engine) + len(metaBlob))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.index.put(fp, size)
	m.evictLocked()
}

// evictLocked removes least-recently-used entries until the total size fits
// the capacity. The most recently stored entry is never evicted, so a single
// entry larger than the capacity stays until something replaces it. Callers
// hold m.mu.
func (m *Manager) evictLocked() {
	if m.cfg.CapacityBytes <= 0 {
		return
	}

	for m.index.totalSize() > m.cfg.CapacityBytes && m.index.len() > 1 {
		victim := m.index.victim()
		if victim == nil {
			return
		}
		if err := m.store.Delete(victim.key); err != nil {
			m.logger.Warn("failed to delete evicted entry", "fingerprint", victim.key.String(), "error", err)
		}
		m.index.remove(victim.key)
		m.logger.Debug("evicted cache entry",
			"fingerprint", victim.key.String(),
			"size", victim.size,
			"total", m.index.totalSize(),
		)
	}
}

// Invalidate removes the entry for the given fingerprint, e.g. after detected
// corruption. Invalidating an absent fingerprint is not an error.
func (m *Manager) Invalidate(fp domain.Fingerprint) error {
	if err := m.store.Delete(fp); err != nil {
		return zerr.With(err, "fingerprint", fp.String())
	}

	m.mu.Lock()
	m.index.remove(fp)
	m.mu.Unlock()
	return nil
}

// Clear removes every cached entry.
func (m *Manager) Clear() error {
	m.mu.Lock()
	keys := make([]domain.Fingerprint, 0, m.index.len())
	for key := range m.index.entries {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	for _, key := range keys {
		if err := m.Invalidate(key); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a point-in-time summary of the cache.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:       m.index.len(),
		TotalBytes:    m.index.totalSize(),
		CapacityBytes: m.cfg.CapacityBytes,
	}
}
