package graph

import (
	"github.com/gomlx/exceptions"
)

// Validate re-checks the structural invariants from §3 against the graph's
// current node arena and returns the first violation found, or nil if none
// exist: shape and strides of equal rank, every operand stored before its
// consumer, reduce axes strictly increasing and in range, views keeping
// their operand's element count, and inputs/weights naming Tensor nodes
// with weights a subset of inputs. It does not recompute the output
// shape or strides of unary, binary or reduce nodes, and does not check
// view shapes for -1 entries.
//
// This is a self-check, not part of normal construction: every op
// constructor already enforces its own slice of these invariants before
// appending a node, so a correctly-used Graph never fails Validate. It
// exists for tests and for a collaborator that wants to assert a Graph it
// received from elsewhere (e.g. deserialized, or built by code it doesn't
// trust) is well-formed before walking it.
//
// Internally it uses exceptions.Panicf/TryCatch the way this package
// reserves that idiom: each check panics on the first violation it finds,
// and the walk recovers that panic back into the returned error. A
// violation here always indicates a core bug -- it is reported as an
// *InternalError, never a *ShapeError.
func (g *Graph) Validate() error {
	violation := exceptions.TryCatch[error](func() {
		for idx := range g.nodes {
			g.checkNodeInvariants(idx)
		}
		g.checkInputsAndWeights()
	})
	if violation == nil {
		return nil
	}
	return &InternalError{Reason: violation.Error()}
}

func (g *Graph) checkNodeInvariants(idx int) {
	n := &g.nodes[idx]

	// Invariant 1: len(shape) == len(strides).
	if len(n.shape) != len(n.strides) {
		exceptions.Panicf("node #%d: shape has rank %d but strides has rank %d", idx, len(n.shape), len(n.strides))
	}

	switch p := n.payload.(type) {
	case *unaryPayload:
		// Operand index precedes its consumer (topological order).
		if p.x >= idx {
			exceptions.Panicf("node #%d: UnaryOp operand #%d is not strictly before its consumer", idx, p.x)
		}
	case *binaryPayload:
		if p.x >= idx || p.y >= idx {
			exceptions.Panicf("node #%d: BinaryOp operand indices (#%d, #%d) are not strictly before its consumer", idx, p.x, p.y)
		}
	case *reducePayload:
		if p.x >= idx {
			exceptions.Panicf("node #%d: ReduceOp operand #%d is not strictly before its consumer", idx, p.x)
		}
		// Invariant 4: dims strictly increasing, each in [0, rank(x)).
		xRank := g.nodes[p.x].shape.Rank()
		for i, axis := range p.dims {
			if axis < 0 || axis >= xRank {
				exceptions.Panicf("node #%d: ReduceOp axis %d out of range for operand rank %d", idx, axis, xRank)
			}
			if i > 0 && p.dims[i-1] >= axis {
				exceptions.Panicf("node #%d: ReduceOp dims %v is not strictly increasing", idx, p.dims)
			}
		}
	case *viewPayload:
		if p.x >= idx {
			exceptions.Panicf("node #%d: ViewOp operand #%d is not strictly before its consumer", idx, p.x)
		}
		// Invariant 5: product(shape) == product(x.shape).
		if n.shape.Size() != g.nodes[p.x].shape.Size() {
			exceptions.Panicf("node #%d: ViewOp shape %s has %d elements, operand has %d", idx, n.shape, n.shape.Size(), g.nodes[p.x].shape.Size())
		}
	}
}

func (g *Graph) checkInputsAndWeights() {
	// Invariant 6: every input/weight index refers to a Tensor variant, and
	// weights is a subset of inputs.
	inputSet := make(map[int]bool, len(g.inputs))
	for _, idx := range g.inputs {
		if idx < 0 || idx >= len(g.nodes) || g.nodes[idx].Kind() != NodeKindTensor {
			exceptions.Panicf("input index %d does not refer to a Tensor node", idx)
		}
		inputSet[idx] = true
	}
	for _, idx := range g.weights {
		if !inputSet[idx] {
			exceptions.Panicf("weight index %d is not also registered as an input", idx)
		}
	}
}
