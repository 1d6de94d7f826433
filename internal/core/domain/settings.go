package domain

import (
	"encoding/binary"
	"slices"
)

// CompilationSettings is the immutable configuration record for one build.
//
// Only fields that change the emitted engine participate in the fingerprint.
// Debug and Verbosity affect build logging only and are deliberately excluded;
// see appendFingerprintFields. This split is an invariant, not an accident:
// toggling verbosity must hit the cache.
type CompilationSettings struct {
	// EnabledPrecisions is the set of dtypes the builder may select kernels in.
	EnabledPrecisions []DType

	// WorkspaceSize is the scratch memory budget in bytes the builder may use.
	WorkspaceSize int64

	// OptimizationLevel trades build time for engine quality (0-5).
	OptimizationLevel int

	// DeviceID identifies the target accelerator. Engines are not portable
	// across device architectures, so it participates in the fingerprint.
	DeviceID int

	// VersionCompatible requests a forward-compatible engine.
	VersionCompatible bool

	// SparseWeights enables sparse kernel selection.
	SparseWeights bool

	// DisableTF32 forces FP32 layers to full-precision accumulation.
	DisableTF32 bool

	// Debug enables verbose builder instrumentation. Not fingerprinted.
	Debug bool

	// Verbosity is the builder log level. Not fingerprinted.
	Verbosity int
}

// appendFingerprintFields appends the fingerprint-participating fields in
// canonical order: precision set (sorted), workspace size, optimization level,
// device, then the boolean build flags. The order is fixed; appending new
// fields at the end is the only compatible evolution.
func (s CompilationSettings) appendFingerprintFields(buf []byte) []byte {
	precisions := slices.Clone(s.EnabledPrecisions)
	slices.Sort(precisions)
	precisions = slices.Compact(precisions)

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(precisions)))
	for _, p := range precisions {
		buf = append(buf, byte(p))
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.WorkspaceSize))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.OptimizationLevel))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.DeviceID))
	buf = appendBool(buf, s.VersionCompatible)
	buf = appendBool(buf, s.SparseWeights)
	buf = appendBool(buf, s.DisableTF32)
	return buf
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}
