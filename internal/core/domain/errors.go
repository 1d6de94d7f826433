package domain

import "go.trai.ch/zerr"

var (
	// ErrUnfingerprintableGraph is returned when a graph contains a node whose
	// static arguments cannot be deterministically serialized. This is a hard
	// error: silently producing a weak hash would hide a logic error upstream.
	ErrUnfingerprintableGraph = zerr.New("graph contains a node that cannot be fingerprinted")

	// ErrEmptyGraph is returned when fingerprinting a graph with no nodes.
	ErrEmptyGraph = zerr.New("graph has no nodes")

	// ErrNoInputs is returned when fingerprinting a shape envelope with no inputs.
	ErrNoInputs = zerr.New("shape envelope declares no inputs")

	// ErrInvalidShapeBounds is returned when a dimension violates min <= opt <= max.
	ErrInvalidShapeBounds = zerr.New("shape dimension violates min <= opt <= max")

	// ErrInvalidFingerprint is returned when parsing a malformed fingerprint string.
	ErrInvalidFingerprint = zerr.New("invalid fingerprint")

	// ErrStoreCreateFailed is returned when the artifact store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create artifact store directory")

	// ErrStoreReadFailed is returned when an artifact blob cannot be read.
	// The cache manager recovers from this locally by treating it as a miss.
	ErrStoreReadFailed = zerr.New("failed to read artifact blob")

	// ErrStoreWriteFailed is returned when an artifact blob cannot be written.
	// The cache manager recovers from this locally; the built artifact is
	// returned to the caller regardless.
	ErrStoreWriteFailed = zerr.New("failed to write artifact blob")

	// ErrStoreDeleteFailed is returned when an artifact blob cannot be deleted.
	ErrStoreDeleteFailed = zerr.New("failed to delete artifact blob")

	// ErrBlobChecksumMismatch is returned when a loaded blob does not match its
	// recorded checksum. Treated as a read failure, never returned to callers
	// as data.
	ErrBlobChecksumMismatch = zerr.New("artifact blob checksum mismatch")

	// ErrMetadataMarshalFailed is returned when artifact metadata cannot be encoded.
	ErrMetadataMarshalFailed = zerr.New("failed to marshal artifact metadata")

	// ErrMetadataUnmarshalFailed is returned when artifact metadata cannot be decoded.
	ErrMetadataUnmarshalFailed = zerr.New("failed to unmarshal artifact metadata")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrCompressionFailed is returned when compressing or decompressing a blob fails.
	ErrCompressionFailed = zerr.New("failed to compress or decompress artifact blob")
)
