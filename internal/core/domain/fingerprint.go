package domain

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
	"go.trai.ch/zerr"
)

// Fingerprint is a 32-byte BLAKE3 digest identifying a
// (graph, shape envelope, settings) triple. Identical inputs yield identical
// fingerprints regardless of process, host, or run order.
type Fingerprint [32]byte

// fingerprintKey is the BLAKE3 keyed-hashing domain key for engine
// fingerprints. Changing it invalidates every existing cache entry. The bytes
// are readable ASCII zero-padded to 32, so the key is inspectable in hex dumps
// without weakening the hash.
var fingerprintKey = [32]byte{
	'e', 'n', 'g', 'i', 'n', 'e', 'c', 'a', 'c', 'h', 'e', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// String returns the canonical lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint parses a 64-character hex string.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fp, zerr.With(zerr.Wrap(err, ErrInvalidFingerprint.Error()), "input", s)
	}
	if len(decoded) != len(fp) {
		return fp, zerr.With(zerr.Wrap(ErrInvalidFingerprint, "wrong digest length"), "length", len(decoded))
	}
	copy(fp[:], decoded)
	return fp, nil
}

// ComputeFingerprint derives the fingerprint for a compilation request. It is
// pure and deterministic: the graph is serialized node-by-node in canonical
// traversal order, the shape envelope per input in declared order, and the
// settings restricted to their fingerprint-participating fields. The three
// sections are concatenated with explicit length prefixes so bytes can never
// shift between sections, then hashed.
func ComputeFingerprint(
	graph GraphDescriptor,
	shapes ShapeEnvelope,
	settings CompilationSettings,
) (Fingerprint, error) {
	graphSection, err := encodeGraphSection(graph)
	if err != nil {
		return Fingerprint{}, err
	}

	shapeSection, err := encodeShapeSection(shapes)
	if err != nil {
		return Fingerprint{}, err
	}

	settingsSection := settings.appendFingerprintFields(nil)

	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails for a wrong key length, which the fixed-size
		// array rules out.
		panic("domain: BLAKE3 keyed hasher initialization failed: " + err.Error())
	}

	for _, section := range [][]byte{graphSection, shapeSection, settingsSection} {
		var prefix [8]byte
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(section)))
		_, _ = hasher.Write(prefix[:])
		_, _ = hasher.Write(section)
	}

	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp, nil
}

// encodeGraphSection serializes the graph in canonical order. Each node
// contributes its operation name, attribute count and values, input references
// remapped to canonical positions, and output arity.
func encodeGraphSection(graph GraphDescriptor) ([]byte, error) {
	if len(graph.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	order, err := graph.canonicalOrder()
	if err != nil {
		return nil, err
	}

	// Canonical position of each node, for remapping input references.
	position := make([]int, len(graph.Nodes))
	for pos, idx := range order {
		position[idx] = pos
	}

	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(order)))
	for _, idx := range order {
		node := graph.Nodes[idx]

		buf = appendString(buf, node.Op)

		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(node.Attrs)))
		for _, a := range node.Attrs {
			buf, err = a.appendEncoded(buf)
			if err != nil {
				return nil, zerr.With(err, "op", node.Op)
			}
		}

		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(node.Inputs)))
		for _, in := range node.Inputs {
			ref := in
			if in >= 0 {
				ref = position[in]
			}
			buf = binary.LittleEndian.AppendUint64(buf, uint64(ref))
		}

		buf = binary.LittleEndian.AppendUint64(buf, uint64(node.Outputs))
	}
	return buf, nil
}

// encodeShapeSection serializes the envelope with fixed-width fields: per
// input, dtype tag, layout tag, rank, then (min, opt, max) per dimension.
func encodeShapeSection(shapes ShapeEnvelope) ([]byte, error) {
	if err := shapes.Validate(); err != nil {
		return nil, err
	}

	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(shapes.Inputs)))
	for _, in := range shapes.Inputs {
		buf = append(buf, byte(in.DType), byte(in.Layout))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(in.Dims)))
		for _, d := range in.Dims {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Min))
			buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Opt))
			buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Max))
		}
	}
	return buf, nil
}
