package domain

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.trai.ch/zerr"
)

const (
	// SlotEngine is the store slot holding the compiled engine blob.
	SlotEngine = "engine"

	// SlotMetadata is the store slot holding the serialized artifact metadata.
	SlotMetadata = "metadata"
)

// ArtifactMetadata describes a compiled engine: the tensor names the runtime
// binds at execution time plus build provenance. Stored alongside the engine
// blob so a cache hit can reconstruct the full artifact.
type ArtifactMetadata struct {
	InputNames      []string  `cbor:"1,keyasint"`
	OutputNames     []string  `cbor:"2,keyasint"`
	BuiltAt         time.Time `cbor:"3,keyasint"`
	CompilerVersion string    `cbor:"4,keyasint"`
}

// Artifact is the opaque compiled output of a build. The cache never inspects
// Engine; Metadata exists so hits can restore runtime binding information
// without re-tracing the graph.
type Artifact struct {
	Engine   []byte
	Metadata ArtifactMetadata
}

// Size returns the artifact's accountable size in bytes: the engine blob plus
// the encoded metadata.
func (a *Artifact) Size() int64 {
	meta, err := a.Metadata.Marshal()
	if err != nil {
		return int64(len(a.Engine))
	}
	return int64(len(a.Engine) + len(meta))
}

// Marshal encodes the metadata as CBOR.
func (m ArtifactMetadata) Marshal() ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, zerr.Wrap(err, ErrMetadataMarshalFailed.Error())
	}
	return data, nil
}

// UnmarshalArtifactMetadata decodes CBOR metadata.
func UnmarshalArtifactMetadata(data []byte) (ArtifactMetadata, error) {
	var m ArtifactMetadata
	if err := cbor.Unmarshal(data, &m); err != nil {
		return ArtifactMetadata{}, zerr.Wrap(err, ErrMetadataUnmarshalFailed.Error())
	}
	return m, nil
}
