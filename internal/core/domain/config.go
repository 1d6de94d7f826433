package domain

// CacheConfig is the configuration surface the surrounding compiler pipeline
// hands to the cache.
type CacheConfig struct {
	// CacheEnabled controls whether freshly built artifacts are stored.
	CacheEnabled bool

	// ReuseEnabled controls whether lookups are performed before building.
	// Disabling it forces a rebuild on every request.
	ReuseEnabled bool

	// CacheRoot is the directory of the disk-backed store.
	CacheRoot string

	// CapacityBytes is the eviction threshold. Zero or negative means
	// unbounded; a negative value additionally draws a one-time warning since
	// it usually indicates a misconfiguration.
	CapacityBytes int64

	// Compress wraps the store with zstd compression.
	Compress bool

	// LogJSON switches the logger to JSON output.
	LogJSON bool
}

// DefaultCacheConfig returns the configuration used when no config file is
// present: caching and reuse on, default root, 5 GiB capacity.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		CacheEnabled:  true,
		ReuseEnabled:  true,
		CacheRoot:     DefaultCachePath(),
		CapacityBytes: DefaultCapacityBytes,
	}
}
