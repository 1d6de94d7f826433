// Package memstore implements an in-memory artifact store, used in tests and
// as the starting point for user-supplied custom caches.
package memstore

import (
	"maps"
	"slices"
	"sync"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
)

var (
	_ ports.ArtifactStore   = (*Store)(nil)
	_ ports.StoreEnumerator = (*Store)(nil)
)

// Store keeps blobs in process memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.Fingerprint]map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[domain.Fingerprint]map[string][]byte),
	}
}

// Save persists a blob under key+slot, overwriting any previous blob.
func (s *Store) Save(key domain.Fingerprint, slot string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.entries[key]
	if !ok {
		slots = make(map[string][]byte)
		s.entries[key] = slots
	}
	slots[slot] = slices.Clone(blob)
	return nil
}

// Load retrieves the blob for key+slot.
func (s *Store) Load(key domain.Fingerprint, slot string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.entries[key][slot]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

// Delete removes every slot stored under key.
func (s *Store) Delete(key domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Size returns the total stored bytes under key.
func (s *Store) Size(key domain.Fingerprint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, blob := range s.entries[key] {
		total += int64(len(blob))
	}
	return total, nil
}

// Enumerate lists all stored entries for cache-manager index warm-up.
func (s *Store) Enumerate() ([]ports.StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.StoreEntry, 0, len(s.entries))
	for key, slots := range s.entries {
		entry := ports.StoreEntry{Key: key, Slots: slices.Sorted(maps.Keys(slots))}
		for _, blob := range slots {
			entry.TotalSize += int64(len(blob))
		}
		out = append(out, entry)
	}
	return out, nil
}

// Len returns the number of stored entries. Used by tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
