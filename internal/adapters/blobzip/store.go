// Package blobzip wraps any artifact store with transparent zstd compression.
// Engine blobs are large and compress well; the wrapped store only ever sees
// compressed bytes, so any backend gains compression without changes.
package blobzip

import (
	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"github.com/klauspost/compress/zstd"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactStore = (*Store)(nil)

// Store is a compressing decorator over another ArtifactStore.
type Store struct {
	inner   ports.ArtifactStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Wrap decorates the given store with zstd compression. The encoder and
// decoder are stateless across calls (EncodeAll/DecodeAll) and safe for
// concurrent use.
func Wrap(inner ports.ArtifactStore) (*Store, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCompressionFailed.Error())
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCompressionFailed.Error())
	}
	return &Store{inner: inner, encoder: encoder, decoder: decoder}, nil
}

// Save compresses the blob and stores it under key+slot.
func (s *Store) Save(key domain.Fingerprint, slot string, blob []byte) error {
	return s.inner.Save(key, slot, s.encoder.EncodeAll(blob, nil))
}

// Load retrieves and decompresses the blob for key+slot. A blob that fails to
// decompress is reported as a read failure, which the cache manager treats as
// a miss.
func (s *Store) Load(key domain.Fingerprint, slot string) ([]byte, bool, error) {
	compressed, ok, err := s.inner.Load(key, slot)
	if err != nil || !ok {
		return nil, ok, err
	}

	blob, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "slot", slot)
	}
	return blob, true, nil
}

// Delete removes every slot stored under key.
func (s *Store) Delete(key domain.Fingerprint) error {
	return s.inner.Delete(key)
}

// Size returns the total stored (compressed) bytes under key. Capacity
// accounting operates on what actually occupies the backend.
func (s *Store) Size(key domain.Fingerprint) (int64, error) {
	return s.inner.Size(key)
}

// Enumerate forwards index warm-up when the wrapped store supports it.
func (s *Store) Enumerate() ([]ports.StoreEntry, error) {
	if e, ok := s.inner.(ports.StoreEnumerator); ok {
		return e.Enumerate()
	}
	return nil, nil
}
