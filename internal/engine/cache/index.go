package cache

import "github.com/accelforge/enginecache/internal/core/domain"

// entry is the index record for one cached fingerprint.
type entry struct {
	key        domain.Fingerprint
	size       int64
	lastAccess uint64
	inserted   uint64
}

// cacheIndex tracks sizes and recency for eviction decisions. It is owned by
// the Manager and accessed only under the Manager's mutex, so eviction always
// sees a consistent view of the total size.
type cacheIndex struct {
	entries map[domain.Fingerprint]*entry
	total   int64
	seq     uint64
}

func newCacheIndex() *cacheIndex {
	return &cacheIndex{entries: make(map[domain.Fingerprint]*entry)}
}

// put records an entry, replacing any previous record for the key. The entry
// starts as most recently used.
func (ix *cacheIndex) put(key domain.Fingerprint, size int64) {
	ix.seq++
	if old, ok := ix.entries[key]; ok {
		ix.total -= old.size
		old.size = size
		old.lastAccess = ix.seq
		ix.total += size
		return
	}
	ix.entries[key] = &entry{
		key:        key,
		size:       size,
		lastAccess: ix.seq,
		inserted:   ix.seq,
	}
	ix.total += size
}

// touch refreshes the recency marker of an existing entry.
func (ix *cacheIndex) touch(key domain.Fingerprint) {
	if e, ok := ix.entries[key]; ok {
		ix.seq++
		e.lastAccess = ix.seq
	}
}

// remove drops an entry from the accounting.
func (ix *cacheIndex) remove(key domain.Fingerprint) {
	if e, ok := ix.entries[key]; ok {
		ix.total -= e.size
		delete(ix.entries, key)
	}
}

// victim returns the least recently used entry, breaking recency ties by
// insertion order (oldest inserted first). Returns nil when the index is
// empty.
func (ix *cacheIndex) victim() *entry {
	var v *entry
	for _, e := range ix.entries {
		if v == nil ||
			e.lastAccess < v.lastAccess ||
			(e.lastAccess == v.lastAccess && e.inserted < v.inserted) {
			v = e
		}
	}
	return v
}

func (ix *cacheIndex) totalSize() int64 {
	return ix.total
}

func (ix *cacheIndex) len() int {
	return len(ix.entries)
}
