package domain

import "go.trai.ch/zerr"

// DType identifies the element type of a tensor input. The numeric values are
// encoded into fingerprints and must never be reordered.
type DType uint8

const (
	// DTypeUnknown is the zero value; fingerprinting rejects it.
	DTypeUnknown DType = iota
	// DTypeFloat32 is 32-bit IEEE floating point.
	DTypeFloat32
	// DTypeFloat16 is 16-bit IEEE floating point.
	DTypeFloat16
	// DTypeBFloat16 is bfloat16.
	DTypeBFloat16
	// DTypeInt8 is signed 8-bit integer (quantized precision).
	DTypeInt8
	// DTypeInt32 is signed 32-bit integer.
	DTypeInt32
	// DTypeInt64 is signed 64-bit integer.
	DTypeInt64
	// DTypeBool is boolean.
	DTypeBool
)

// String returns the human-readable name of the dtype.
func (d DType) String() string {
	switch d {
	case DTypeFloat32:
		return "float32"
	case DTypeFloat16:
		return "float16"
	case DTypeBFloat16:
		return "bfloat16"
	case DTypeInt8:
		return "int8"
	case DTypeInt32:
		return "int32"
	case DTypeInt64:
		return "int64"
	case DTypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Layout identifies the memory layout of a tensor input. Encoded into
// fingerprints; values must never be reordered.
type Layout uint8

const (
	// LayoutContiguous is row-major contiguous (NCHW for 4-D images).
	LayoutContiguous Layout = iota
	// LayoutChannelsLast is channels-last (NHWC for 4-D images).
	LayoutChannelsLast
)

// String returns the human-readable name of the layout.
func (l Layout) String() string {
	switch l {
	case LayoutChannelsLast:
		return "channels_last"
	default:
		return "contiguous"
	}
}

// Dim is the build envelope for a single tensor dimension. A static dimension
// has Min == Opt == Max; a dynamic dimension declares the range the compiled
// engine must support, with Opt being the size the builder optimizes for.
type Dim struct {
	Min int64
	Opt int64
	Max int64
}

// StaticDim returns a Dim describing a fixed-size dimension.
func StaticDim(size int64) Dim {
	return Dim{Min: size, Opt: size, Max: size}
}

// IsStatic reports whether the dimension has a single fixed size.
func (d Dim) IsStatic() bool {
	return d.Min == d.Opt && d.Opt == d.Max
}

// Validate checks the Min <= Opt <= Max ordering.
func (d Dim) Validate() error {
	if d.Min < 0 || d.Min > d.Opt || d.Opt > d.Max {
		err := zerr.Wrap(ErrInvalidShapeBounds, "bad dimension envelope")
		err = zerr.With(err, "min", d.Min)
		err = zerr.With(err, "opt", d.Opt)
		return zerr.With(err, "max", d.Max)
	}
	return nil
}

// InputSpec declares the dtype, layout, and shape envelope of one graph input.
// Constructed once per compilation request and immutable thereafter.
type InputSpec struct {
	DType  DType
	Layout Layout
	Dims   []Dim
}

// StaticInput builds an InputSpec with fixed dimensions.
func StaticInput(dtype DType, shape ...int64) InputSpec {
	dims := make([]Dim, len(shape))
	for i, s := range shape {
		dims[i] = StaticDim(s)
	}
	return InputSpec{DType: dtype, Layout: LayoutContiguous, Dims: dims}
}

// RangedInput builds an InputSpec from per-dimension envelopes.
func RangedInput(dtype DType, dims ...Dim) InputSpec {
	return InputSpec{DType: dtype, Layout: LayoutContiguous, Dims: dims}
}

// WithLayout returns a copy of the spec with the given layout tag.
func (s InputSpec) WithLayout(layout Layout) InputSpec {
	s.Layout = layout
	return s
}

// Validate checks every dimension envelope.
func (s InputSpec) Validate() error {
	if s.DType == DTypeUnknown {
		return zerr.New("input spec has unknown dtype")
	}
	for i, d := range s.Dims {
		if err := d.Validate(); err != nil {
			return zerr.With(err, "dim", i)
		}
	}
	return nil
}

// ShapeEnvelope is the ordered set of input specs for a compilation request.
// Input order is the graph's declared input order and participates in the
// fingerprint.
type ShapeEnvelope struct {
	Inputs []InputSpec
}

// NewShapeEnvelope builds a ShapeEnvelope from input specs in declared order.
func NewShapeEnvelope(inputs ...InputSpec) ShapeEnvelope {
	return ShapeEnvelope{Inputs: inputs}
}

// Validate checks that the envelope declares at least one input and that every
// input spec is well formed.
func (e ShapeEnvelope) Validate() error {
	if len(e.Inputs) == 0 {
		return ErrNoInputs
	}
	for i, in := range e.Inputs {
		if err := in.Validate(); err != nil {
			return zerr.With(err, "input", i)
		}
	}
	return nil
}
