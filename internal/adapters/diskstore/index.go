package diskstore

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/accelforge/enginecache/internal/core/domain"
	"github.com/accelforge/enginecache/internal/core/ports"
	"github.com/fxamacker/cbor/v2"
	"go.trai.ch/zerr"
)

// slotRecord describes one stored blob in the index.
type slotRecord struct {
	Size     int64  `cbor:"1,keyasint"`
	Checksum uint64 `cbor:"2,keyasint"`
}

// indexFile is the on-disk CBOR representation: hex fingerprint to slots.
type indexFile struct {
	Entries map[string]map[string]slotRecord `cbor:"1,keyasint"`
}

// index is the in-memory record of what the store holds. Callers synchronize
// access; the index itself is not locked.
type index struct {
	entries map[domain.Fingerprint]map[string]slotRecord
}

func newIndex() *index {
	return &index{entries: make(map[domain.Fingerprint]map[string]slotRecord)}
}

func (ix *index) put(key domain.Fingerprint, slot string, size int64, checksum uint64) {
	slots, ok := ix.entries[key]
	if !ok {
		slots = make(map[string]slotRecord)
		ix.entries[key] = slots
	}
	slots[slot] = slotRecord{Size: size, Checksum: checksum}
}

func (ix *index) remove(key domain.Fingerprint) {
	delete(ix.entries, key)
}

func (ix *index) slots(key domain.Fingerprint) []string {
	return slices.Sorted(maps.Keys(ix.entries[key]))
}

// checksum returns the recorded checksum for key+slot. Entries rebuilt from a
// directory scan have no checksum and report unknown.
func (ix *index) checksum(key domain.Fingerprint, slot string) (uint64, bool) {
	rec, ok := ix.entries[key][slot]
	return rec.Checksum, ok && rec.Checksum != 0
}

func (ix *index) totalSize(key domain.Fingerprint) int64 {
	var total int64
	for _, rec := range ix.entries[key] {
		total += rec.Size
	}
	return total
}

func (ix *index) list() []ports.StoreEntry {
	out := make([]ports.StoreEntry, 0, len(ix.entries))
	for key, slots := range ix.entries {
		entry := ports.StoreEntry{Key: key, Slots: slices.Sorted(maps.Keys(slots))}
		for _, rec := range slots {
			entry.TotalSize += rec.Size
		}
		out = append(out, entry)
	}
	return out
}

// persist writes the index atomically next to the blobs.
func (ix *index) persist(path string) error {
	file := indexFile{Entries: make(map[string]map[string]slotRecord, len(ix.entries))}
	for key, slots := range ix.entries {
		file.Entries[key.String()] = maps.Clone(slots)
	}

	data, err := cbor.Marshal(file)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal store index")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write store index"), "path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to write store index"), "path", path)
	}
	return nil
}

// loadIndex reads a persisted index. Any failure surfaces as an error so the
// caller can fall back to a directory scan.
func loadIndex(path string) (*index, error) {
	//nolint:gosec // Path is constructed from the trusted cache root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read store index"), "path", path)
	}

	var file indexFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse store index"), "path", path)
	}

	ix := newIndex()
	for hexKey, slots := range file.Entries {
		key, err := domain.ParseFingerprint(hexKey)
		if err != nil {
			return nil, err
		}
		ix.entries[key] = maps.Clone(slots)
	}
	return ix, nil
}

// scanDirectory rebuilds an index from blob filenames and sizes. Checksums are
// unknown after a scan, so corruption detection resumes on the next Save.
func scanDirectory(root string) (*index, error) {
	ix := newIndex()

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "root", root)
	}

	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), domain.BlobExtension) {
			continue
		}
		name := strings.TrimSuffix(de.Name(), domain.BlobExtension)
		sep := strings.LastIndex(name, "_")
		if sep <= 0 {
			continue
		}
		key, err := domain.ParseFingerprint(name[sep+1:])
		if err != nil {
			continue // unrelated file
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		slots, ok := ix.entries[key]
		if !ok {
			slots = make(map[string]slotRecord)
			ix.entries[key] = slots
		}
		slots[name[:sep]] = slotRecord{Size: info.Size()}
	}

	return ix, nil
}
