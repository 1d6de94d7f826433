// Package diskstore implements the disk-backed artifact store. Each key+slot
// pair is one file named {slot}_{fingerprint-hex}.bin under the cache root; a
// persisted index avoids directory re-scans across process restarts.
package diskstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

var (
	_ ports.ArtifactStore   = (*Store)(nil)
	_ ports.StoreEnumerator = (*Store)(nil)
)

// Store persists blobs under a cache root directory. Load and Save for a given
// key are mutually exclusive via a per-key lock, and writes go through a
// temp-file plus atomic rename so a reader can never observe a half-written
// blob.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[domain.Fingerprint]*sync.Mutex
	index *index
}

// NewStore creates a disk store rooted at the given directory, creating it if
// needed and loading the persisted index when present. A missing or corrupt
// index falls back to a directory scan.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "root", root)
	}

	idx, err := loadIndex(domain.IndexPath(root))
	if err != nil {
		idx, err = scanDirectory(root)
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		root:  root,
		locks: make(map[domain.Fingerprint]*sync.Mutex),
		index: idx,
	}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Save persists a blob under key+slot. Re-saving overwrites without error.
func (s *Store) Save(key domain.Fingerprint, slot string, blob []byte) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.root, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	target := s.blobPath(key, slot)
	tmp, err := os.CreateTemp(s.root, "."+slot+"-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", target)
	}

	s.mu.Lock()
	s.index.put(key, slot, int64(len(blob)), xxhash.Sum64(blob))
	s.persistIndexLocked()
	s.mu.Unlock()

	return nil
}

// Load retrieves the blob for key+slot. Absence is (nil, false, nil). A blob
// whose content no longer matches its recorded checksum is reported as a read
// failure, never returned as data.
func (s *Store) Load(key domain.Fingerprint, slot string) ([]byte, bool, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	path := s.blobPath(key, slot)
	//nolint:gosec // Path is constructed from trusted root and hex fingerprint
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", path)
	}

	s.mu.Lock()
	checksum, known := s.index.checksum(key, slot)
	s.mu.Unlock()
	if known && checksum != xxhash.Sum64(blob) {
		return nil, false, zerr.With(zerr.Wrap(domain.ErrBlobChecksumMismatch, "stored blob failed verification"), "path", path)
	}

	return blob, true, nil
}

// Delete removes every slot stored under key. Deleting an absent key is not
// an error.
func (s *Store) Delete(key domain.Fingerprint) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	slots := s.index.slots(key)
	s.mu.Unlock()

	if len(slots) == 0 {
		// Not indexed; fall back to a directory scan for this key.
		matches, err := filepath.Glob(filepath.Join(s.root, "*_"+key.String()+domain.BlobExtension))
		if err == nil {
			for _, m := range matches {
				if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return zerr.With(zerr.Wrap(err, domain.ErrStoreDeleteFailed.Error()), "path", m)
				}
			}
		}
	}

	for _, slot := range slots {
		path := s.blobPath(key, slot)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreDeleteFailed.Error()), "path", path)
		}
	}

	s.mu.Lock()
	s.index.remove(key)
	s.persistIndexLocked()
	s.mu.Unlock()

	return nil
}

// Size returns the total stored bytes under key, zero if absent.
func (s *Store) Size(key domain.Fingerprint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.totalSize(key), nil
}

// Enumerate lists all stored entries for cache-manager index warm-up.
func (s *Store) Enumerate() ([]ports.StoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.list(), nil
}

// persistIndexLocked writes the index best-effort; a failed index write only
// costs a directory scan on the next start, never data.
func (s *Store) persistIndexLocked() {
	_ = s.index.persist(domain.IndexPath(s.root))
}

func (s *Store) blobPath(key domain.Fingerprint, slot string) string {
	return filepath.Join(s.root, slot+"_"+key.String()+domain.BlobExtension)
}

func (s *Store) keyLock(key domain.Fingerprint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
