package ports

import "github.com/accelforge/enginecache/internal/core/domain"

// StoreEntry summarizes one stored cache entry for index warm-up.
type StoreEntry struct {
	Key       domain.Fingerprint
	Slots     []string
	TotalSize int64
}

// StoreEnumerator is an optional capability of an ArtifactStore. The cache
// manager, and only the cache manager, uses it to rebuild its size and recency
// accounting from a store that survived a process restart. Stores that cannot
// enumerate cheaply simply do not implement it.
type StoreEnumerator interface {
	Enumerate() ([]StoreEntry, error)
}
