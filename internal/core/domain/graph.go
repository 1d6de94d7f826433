package domain

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/zeebo/blake3"
	"go.trai.ch/zerr"
)

// AttrKind tags the value type of a static node attribute. The numeric values
// are encoded into fingerprints and must never be reordered.
type AttrKind uint8

const (
	// AttrInt is a signed integer attribute.
	AttrInt AttrKind = iota
	// AttrFloat is a 64-bit float attribute.
	AttrFloat
	// AttrBool is a boolean attribute.
	AttrBool
	// AttrString is a string attribute.
	AttrString
	// AttrIntList is a list-of-integers attribute (strides, padding, axes).
	AttrIntList
	// AttrOpaque marks an attribute that is not structurally comparable, such
	// as a reference to an external resource. A graph carrying one cannot be
	// fingerprinted.
	AttrOpaque
)

// Attr is a named static (non-tensor) argument of a graph node.
type Attr struct {
	Name string
	Kind AttrKind

	I  int64
	F  float64
	B  bool
	S  string
	Is []int64
}

// IntAttr builds an integer attribute.
func IntAttr(name string, v int64) Attr { return Attr{Name: name, Kind: AttrInt, I: v} }

// FloatAttr builds a float attribute.
func FloatAttr(name string, v float64) Attr { return Attr{Name: name, Kind: AttrFloat, F: v} }

// BoolAttr builds a boolean attribute.
func BoolAttr(name string, v bool) Attr { return Attr{Name: name, Kind: AttrBool, B: v} }

// StringAttr builds a string attribute.
func StringAttr(name, v string) Attr { return Attr{Name: name, Kind: AttrString, S: v} }

// IntListAttr builds a list-of-integers attribute.
func IntListAttr(name string, v ...int64) Attr { return Attr{Name: name, Kind: AttrIntList, Is: v} }

// OpaqueAttr marks an attribute that cannot participate in fingerprinting.
func OpaqueAttr(name string) Attr { return Attr{Name: name, Kind: AttrOpaque} }

// appendEncoded appends the attribute's canonical byte encoding. All numeric
// fields use fixed-width little-endian so adjacent variable-length fields can
// never be confused for one another.
func (a Attr) appendEncoded(buf []byte) ([]byte, error) {
	if a.Kind == AttrOpaque {
		return nil, zerr.With(zerr.Wrap(ErrUnfingerprintableGraph, "opaque attribute"), "attr", a.Name)
	}

	buf = appendString(buf, a.Name)
	buf = append(buf, byte(a.Kind))

	switch a.Kind {
	case AttrInt:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(a.I))
	case AttrFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(a.F))
	case AttrBool:
		if a.B {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case AttrString:
		buf = appendString(buf, a.S)
	case AttrIntList:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(a.Is)))
		for _, v := range a.Is {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	}

	return buf, nil
}

// GraphInput returns the node-input reference for the i-th declared graph
// input. Graph inputs occupy a separate, stable index space below zero so they
// can never collide with node indices.
func GraphInput(i int) int {
	return -(i + 1)
}

// Node is one operation in a GraphDescriptor. Inputs reference producer nodes
// by their index in the descriptor's node list; values from GraphInput
// reference the graph's declared inputs. Outputs is the node's output arity.
type Node struct {
	Op      string
	Attrs   []Attr
	Inputs  []int
	Outputs int
}

// GraphDescriptor is an immutable, acyclic projection of a computation graph,
// sufficient to determine build equivalence. It deliberately excludes volatile
// identifiers (memory addresses, framework node names) so that two structurally
// identical graphs hash identically run-to-run.
type GraphDescriptor struct {
	Nodes []Node
}

// NewGraphDescriptor builds a descriptor from nodes in producer-before-consumer
// order.
func NewGraphDescriptor(nodes ...Node) GraphDescriptor {
	return GraphDescriptor{Nodes: nodes}
}

// Validate checks node input references and rejects cycles.
func (g GraphDescriptor) Validate() error {
	if len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}
	for i, n := range g.Nodes {
		for _, in := range n.Inputs {
			if in >= len(g.Nodes) {
				err := zerr.With(zerr.New("node input references nonexistent node"), "node", i)
				return zerr.With(err, "input", in)
			}
		}
	}
	if _, err := g.canonicalOrder(); err != nil {
		return err
	}
	return nil
}

// canonicalOrder returns node indices in canonical traversal order:
// topological, with ties broken by a stable structural key derived from the
// node's operation, attributes, and the canonical positions of its inputs.
// Nodes with identical structural keys (interchangeable producers) are further
// ordered by a downstream signature covering their consumer subtrees, so two
// descriptors of the same graph under a stable renaming traverse identically.
// Incidental properties (declaration order among independent nodes, node
// names) do not influence the result.
func (g GraphDescriptor) canonicalOrder() ([]int, error) {
	n := len(g.Nodes)

	indegree := make([]int, n)
	consumers := make([][]int, n)
	for i, node := range g.Nodes {
		for _, in := range node.Inputs {
			if in < 0 {
				continue // graph input, always available
			}
			indegree[i]++
			consumers[in] = append(consumers[in], i)
		}
	}

	// position[i] is the canonical position assigned to node i, -1 until placed.
	position := make([]int, n)
	for i := range position {
		position[i] = -1
	}

	// structuralKey encodes everything stable about a ready node. Input
	// references use canonical positions, which are already assigned for all
	// producers of a ready node.
	structuralKey := func(i int) ([]byte, error) {
		node := g.Nodes[i]
		buf := appendString(nil, node.Op)
		for _, a := range node.Attrs {
			var err error
			buf, err = a.appendEncoded(buf)
			if err != nil {
				return nil, zerr.With(err, "op", node.Op)
			}
		}
		for _, in := range node.Inputs {
			ref := in
			if in >= 0 {
				ref = position[in]
			}
			buf = binary.LittleEndian.AppendUint64(buf, uint64(ref))
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(node.Outputs))
		return buf, nil
	}

	downstream := g.downstreamSignatures(consumers)

	var ready []int
	for i := range g.Nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		keys := make(map[int][]byte, len(ready))
		for _, i := range ready {
			key, err := structuralKey(i)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		sort.Slice(ready, func(a, b int) bool {
			na, nb := ready[a], ready[b]
			if c := bytes.Compare(keys[na], keys[nb]); c != 0 {
				return c < 0
			}
			return bytes.Compare(downstream[na], downstream[nb]) < 0
		})

		next := ready[0]
		ready = ready[1:]
		position[next] = len(order)
		order = append(order, next)

		for _, c := range consumers[next] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != n {
		return nil, zerr.New("graph descriptor contains a cycle")
	}
	return order, nil
}

// downstreamSignatures digests each node together with its consumer subtree:
// operation, attributes, output arity, and the sorted set of (input position,
// consumer signature) edges. Two nodes get equal signatures only when
// everything downstream of them is indistinguishable, in which case either may
// be placed first without changing the canonical serialization.
//
// Computed consumers-first; nodes on a cycle keep a nil signature and the
// caller rejects the graph.
func (g GraphDescriptor) downstreamSignatures(consumers [][]int) [][]byte {
	n := len(g.Nodes)
	sigs := make([][]byte, n)

	pending := make([]int, n)
	var queue []int
	for i := range g.Nodes {
		pending[i] = len(consumers[i])
		if pending[i] == 0 {
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]

		node := g.Nodes[i]
		buf := appendString(nil, node.Op)
		for _, a := range node.Attrs {
			enc, err := a.appendEncoded(nil)
			if err != nil {
				// Opaque attributes fail fingerprinting later; the name alone
				// keeps distinct attrs apart here.
				enc = appendString(nil, a.Name)
			}
			buf = append(buf, enc...)
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(node.Outputs))

		var edges [][]byte
		seen := make(map[int]bool, len(consumers[i]))
		for _, c := range consumers[i] {
			if seen[c] {
				continue
			}
			seen[c] = true
			for pos, in := range g.Nodes[c].Inputs {
				if in != i {
					continue
				}
				edge := binary.LittleEndian.AppendUint64(nil, uint64(pos))
				edges = append(edges, append(edge, sigs[c]...))
			}
		}
		sort.Slice(edges, func(a, b int) bool {
			return bytes.Compare(edges[a], edges[b]) < 0
		})
		for _, e := range edges {
			buf = append(buf, e...)
		}

		sum := blake3.Sum256(buf)
		sigs[i] = sum[:]

		for _, in := range node.Inputs {
			if in < 0 {
				continue
			}
			pending[in]--
			if pending[in] == 0 {
				queue = append(queue, in)
			}
		}
	}

	return sigs
}

// appendString appends a length-prefixed string.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s)))
	return append(buf, s...)
}
