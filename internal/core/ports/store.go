package ports

import "github.com/accelforge/enginecache/internal/core/domain"

// ArtifactStore is the persistence capability consumed by the cache manager.
// A key identifies one cache entry; a slot names a logical sub-blob (engine,
// metadata) under that key so related blobs are stored and retrieved as a
// unit. Implementations never inspect blob contents.
//
// Callers may plug in their own store; the disk and in-memory reference
// backends live under internal/adapters.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ArtifactStore interface {
	// Save persists a blob under key+slot. Re-saving the same key+slot
	// overwrites without error.
	Save(key domain.Fingerprint, slot string, blob []byte) error

	// Load retrieves the blob for key+slot. An absent key or slot returns
	// (nil, false, nil): absence is a normal control path, not an error.
	Load(key domain.Fingerprint, slot string) ([]byte, bool, error)

	// Delete removes every slot stored under key. Deleting an absent key is
	// not an error.
	Delete(key domain.Fingerprint) error

	// Size returns the total stored bytes under key, zero if absent.
	Size(key domain.Fingerprint) (int64, error)
}
