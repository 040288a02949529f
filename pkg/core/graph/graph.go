// Package graph builds the computation-graph IR consumed by later compiler
// passes (a scheduler, a code generator, autodiff): a DAG of tensor
// operations whose nodes are tagged variants drawn from a closed algebra
// (inputs, immediates, unary/binary ops, reductions, views), each carrying
// a fully resolved output shape and stride vector computed at construction
// time.
//
// Graph construction is synchronous and single-threaded per Graph (§5):
// every op constructor validates its inputs, computes the output
// shape/strides via the pkg/core/shapes algebra, and appends its result
// node before returning its Handle; composite ops (Sigmoid, Min, MatMul,
// ...) append one node per primitive step of their decomposition. Nothing
// is appended on failure.
package graph

import (
	"fmt"
	"strings"

	"github.com/czankel/gigagrad/pkg/core/shapes"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Graph owns every node created on it: an append-only arena plus the
// subset of Tensor nodes registered as inputs, and the subset of those
// marked as trainable weights (§3).
//
// A Graph is an exclusive-owner resource: at most one goroutine may be
// mutating it at a time, and it performs no internal locking (§5). Handles
// produced by a Graph must not outlive it.
type Graph struct {
	id   uuid.UUID
	name string

	nodes []node

	// inputs holds, in creation order, the arena index of every Tensor
	// node registered via AddInput or AddWeight.
	inputs []int
	// weights is a subset of inputs (by arena index) additionally
	// registered via AddWeight.
	weights []int
}

// New creates an empty Graph. name is used only for diagnostics (log lines
// and Graph.String()).
func New(name string) *Graph {
	g := &Graph{
		id:   uuid.New(),
		name: name,
	}
	klog.V(2).InfoS("graph created", "name", name, "id", g.id)
	return g
}

// ID returns the graph's unique identity, stable for its lifetime. It
// plays no role in shape/stride computation; it exists purely to
// correlate log lines. Foreign-handle detection and Handle.Equal compare
// *Graph pointers, not IDs.
func (g *Graph) ID() uuid.UUID { return g.id }

// Name returns the diagnostic name given to New.
func (g *Graph) Name() string { return g.name }

// NumNodes returns how many nodes have been appended so far.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Inputs returns handles for every Tensor node registered as an input
// (via AddInput or AddWeight), in registration order.
func (g *Graph) Inputs() []Handle {
	out := make([]Handle, len(g.inputs))
	for i, idx := range g.inputs {
		out[i] = Handle{g: g, index: idx}
	}
	return out
}

// Weights returns handles for every input additionally registered as a
// trainable weight (via AddWeight), in registration order. Weights are
// always a subset of Inputs (§3 invariant 6).
func (g *Graph) Weights() []Handle {
	out := make([]Handle, len(g.weights))
	for i, idx := range g.weights {
		out[i] = Handle{g: g, index: idx}
	}
	return out
}

// Nodes iterates every node in the graph in index order. Because the
// arena is append-only and every operand is registered before its
// consumer, this is also a valid topological order (§3 invariant 7, §6.3).
func (g *Graph) Nodes() func(yield func(Handle) bool) {
	return func(yield func(Handle) bool) {
		for i := range g.nodes {
			if !yield((Handle{g: g, index: i})) {
				return
			}
		}
	}
}

// registerNode appends n to the arena and returns its new Handle. It is
// the single mutation point of a Graph; every op constructor funnels
// through it.
func (g *Graph) registerNode(n node) Handle {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	return Handle{g: g, index: idx}
}

// AddInput registers a new Tensor node with the given shape and marks it
// as a graph input. Its data slot starts unbound (nil); a runtime sets it
// later via Handle.SetTensorData.
func (g *Graph) AddInput(shape shapes.Shape) (Handle, error) {
	h := g.registerNode(node{
		payload: &tensorPayload{},
		shape:   shape.Clone(),
		strides: shapes.ComputeStrides(shape),
		op:      "AddInput",
	})
	g.inputs = append(g.inputs, h.index)
	klog.V(2).InfoS("input added", "graph", g.id, "index", h.index, "shape", shape.String())
	return h, nil
}

// AddWeight registers a new Tensor node and marks it both as an input and
// as a trainable weight (§3 invariant 6: weights is always a subset of
// inputs).
func (g *Graph) AddWeight(shape shapes.Shape) (Handle, error) {
	h, err := g.AddInput(shape)
	if err != nil {
		return invalidHandle, err
	}
	g.weights = append(g.weights, h.index)
	return h, nil
}

// Immediate registers a fresh scalar literal node of the given value. Its
// shape is always empty (a scalar). Per §9, this core performs no CSE: two
// calls with the same value produce two distinct nodes, matching the
// original implementation's fresh-node-per-call behavior.
func (g *Graph) Immediate(value float64) (Handle, error) {
	h := g.registerNode(node{
		payload: &immediatePayload{value: value},
		shape:   shapes.Shape{},
		strides: shapes.Strides{},
		op:      "Immediate",
	})
	return h, nil
}

// String renders a header line with the node, input and weight counts,
// then every node in index order as "#<index> <payload> -> <shape>", the
// way a scheduler or codegen pass dumping the IR would want to see it.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Graph %q (%s nodes, %s inputs, %s weights):\n",
		g.name, humanize.Comma(int64(len(g.nodes))), humanize.Comma(int64(len(g.inputs))), humanize.Comma(int64(len(g.weights))))
	for i, n := range g.nodes {
		fmt.Fprintf(&b, "  #%d %s -> %s\n", i, n.payload.String(), n.shape.String())
	}
	return b.String()
}

// Dump is a convenience alias for String(), for collaborators that prefer
// a verb over a Stringer call.
func (g *Graph) Dump() string { return g.String() }
