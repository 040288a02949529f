package graph

import (
	"fmt"

	"github.com/czankel/gigagrad/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// checkOperand verifies h belongs to g and still indexes a live node. A
// mismatch is always a caller bug (a Handle from one Graph used to build
// another, or a Handle outlived its Graph), never a user-correctable input
// -- so it surfaces as an *InternalError, not a *ShapeError.
func (g *Graph) checkOperand(op string, h Handle) error {
	if h.g != g {
		return errors.WithStack(&InternalError{Reason: fmt.Sprintf("%s: operand handle belongs to a different Graph", op)})
	}
	if !h.IsValid() {
		return errors.WithStack(&InternalError{Reason: fmt.Sprintf("%s: operand handle is out of range for its Graph's node arena", op)})
	}
	return nil
}

func (g *Graph) fail(op string, err error) (Handle, error) {
	klog.V(1).InfoS("op constructor failed", "graph", g.id, "op", op, "err", err)
	return invalidHandle, err
}

// AddUnary appends a UnaryOp node applying kind to x. Its shape and strides
// are copied from x unchanged (§4.2, §3 invariant 2).
func (g *Graph) AddUnary(kind UnaryKind, x Handle) (Handle, error) {
	const op = "AddUnary"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	xn := x.node()
	h := g.registerNode(node{
		payload: &unaryPayload{op: kind, x: x.index},
		shape:   xn.shape.Clone(),
		strides: xn.strides.Clone(),
		op:      op,
	})
	klog.V(2).InfoS("node added", "graph", g.id, "op", op, "kind", kind, "shape", h.Shape().String())
	return h, nil
}

// AddBinary appends a BinaryOp node applying kind to x and y. Its shape is
// the broadcast of x's and y's shapes, with canonical strides (§4.2, §3
// invariant 3).
func (g *Graph) AddBinary(kind BinaryKind, x, y Handle) (Handle, error) {
	const op = "AddBinary"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	if err := g.checkOperand(op, y); err != nil {
		return g.fail(op, err)
	}
	xn, yn := x.node(), y.node()
	outShape, err := shapes.Broadcast(xn.shape, yn.shape)
	if err != nil {
		return g.fail(op, err)
	}
	h := g.registerNode(node{
		payload: &binaryPayload{op: kind, x: x.index, y: y.index},
		shape:   outShape,
		strides: shapes.ComputeStrides(outShape),
		op:      op,
	})
	klog.V(2).InfoS("node added", "graph", g.id, "op", op, "kind", kind, "shape", h.Shape().String())
	return h, nil
}

// AddReduce appends a ReduceOp node reducing x along dims (axes may be
// negative; they are normalized, sorted and deduplicated -- a repeated
// axis is a ShapeError, per §4.2). Shape follows §4.1's reduce_shape rule.
func (g *Graph) AddReduce(kind ReduceKind, x Handle, dims []int, keepdim bool) (Handle, error) {
	const op = "AddReduce"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	xn := x.node()
	normalized, err := shapes.NormalizeReduceDims(dims, xn.shape.Rank())
	if err != nil {
		return g.fail(op, err)
	}
	outShape, err := shapes.ReduceShape(xn.shape, normalized, keepdim)
	if err != nil {
		return g.fail(op, err)
	}
	h := g.registerNode(node{
		payload: &reducePayload{op: kind, x: x.index, dims: normalized, keepdim: keepdim},
		shape:   outShape,
		strides: shapes.ComputeStrides(outShape),
		op:      op,
	})
	klog.V(2).InfoS("node added", "graph", g.id, "op", op, "kind", kind, "shape", h.Shape().String())
	return h, nil
}

// AddView appends a ViewOp node sharing x's data under the given shape and
// strides. The caller supplies an already-validated shape/strides pair
// (reshape and permute do this); AddView itself only checks the two
// structural invariants every view must satisfy (§4.2, §3 invariant 5):
// same rank as the supplied strides, and the same element count as x.
func (g *Graph) AddView(x Handle, shape shapes.Shape, strides shapes.Strides) (Handle, error) {
	const op = "AddView"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	if len(shape) != len(strides) {
		return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{shape}, Reason: "shape and strides must have the same rank"}))
	}
	xn := x.node()
	if shape.Size() != xn.shape.Size() {
		return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{xn.shape, shape}, Reason: fmt.Sprintf("view shape %s has %d elements, operand has %d", shape, shape.Size(), xn.shape.Size())}))
	}
	h := g.registerNode(node{
		payload: &viewPayload{x: x.index},
		shape:   shape.Clone(),
		strides: strides.Clone(),
		op:      op,
	})
	klog.V(2).InfoS("node added", "graph", g.id, "op", op, "shape", h.Shape().String())
	return h, nil
}

// --- Elementwise unary primitives ---

// Exp appends an EXP node.
func (g *Graph) Exp(x Handle) (Handle, error) { return g.AddUnary(UnaryExp, x) }

// Log appends a LOG node.
func (g *Graph) Log(x Handle) (Handle, error) { return g.AddUnary(UnaryLog, x) }

// Sin appends a SIN node.
func (g *Graph) Sin(x Handle) (Handle, error) { return g.AddUnary(UnarySin, x) }

// Neg computes -x as (-1) * x, per §4.3 ("neg(x) ≡ (-1) * x") -- there is
// no dedicated NEG opcode in the closed binary/unary algebra.
func (g *Graph) Neg(x Handle) (Handle, error) {
	negOne, err := g.Immediate(-1)
	if err != nil {
		return g.fail("Neg", err)
	}
	return g.AddBinary(BinaryMul, negOne, x)
}

// --- Elementwise binary primitives (Handle, Handle) ---

func (g *Graph) Add(x, y Handle) (Handle, error) { return g.AddBinary(BinaryAdd, x, y) }
func (g *Graph) Sub(x, y Handle) (Handle, error) { return g.AddBinary(BinarySub, x, y) }
func (g *Graph) Mul(x, y Handle) (Handle, error) { return g.AddBinary(BinaryMul, x, y) }
func (g *Graph) Div(x, y Handle) (Handle, error) { return g.AddBinary(BinaryDiv, x, y) }
func (g *Graph) Pow(x, y Handle) (Handle, error) { return g.AddBinary(BinaryPow, x, y) }
func (g *Graph) Max(x, y Handle) (Handle, error) { return g.AddBinary(BinaryMax, x, y) }

// Equal appends a CMP_EQ node: x == y. Comparisons built on top of it
// guarantee 0/1-valued output, per §4.3.
func (g *Graph) Equal(x, y Handle) (Handle, error) { return g.AddBinary(BinaryCmpEq, x, y) }

// --- Scalar-lifting binary primitives (§4.3: "Elementwise binary with a
// scalar: promote the scalar via immediate, then build a BinaryOp") ---

// AddScalar computes x + c.
func (g *Graph) AddScalar(x Handle, c float64) (Handle, error) { return g.scalarRight(BinaryAdd, x, c) }

// SubScalar computes x - c.
func (g *Graph) SubScalar(x Handle, c float64) (Handle, error) { return g.scalarRight(BinarySub, x, c) }

// ScalarSub computes c - x (subtraction is not commutative, per §4.3).
func (g *Graph) ScalarSub(c float64, x Handle) (Handle, error) { return g.scalarLeft(BinarySub, c, x) }

// MulScalar computes x * c.
func (g *Graph) MulScalar(x Handle, c float64) (Handle, error) { return g.scalarRight(BinaryMul, x, c) }

// DivScalar computes x / c.
func (g *Graph) DivScalar(x Handle, c float64) (Handle, error) { return g.scalarRight(BinaryDiv, x, c) }

// ScalarDiv computes c / x (division is not commutative, per §4.3).
func (g *Graph) ScalarDiv(c float64, x Handle) (Handle, error) { return g.scalarLeft(BinaryDiv, c, x) }

// PowScalar computes x^c. The reverse (ScalarPow) is also supported, per
// §4.3 ("Power x^y with scalar y ... The reverse also supported").
func (g *Graph) PowScalar(x Handle, c float64) (Handle, error) { return g.scalarRight(BinaryPow, x, c) }

// ScalarPow computes c^x.
func (g *Graph) ScalarPow(c float64, x Handle) (Handle, error) { return g.scalarLeft(BinaryPow, c, x) }

func (g *Graph) scalarRight(kind BinaryKind, x Handle, c float64) (Handle, error) {
	imm, err := g.Immediate(c)
	if err != nil {
		return g.fail("scalarRight", err)
	}
	return g.AddBinary(kind, x, imm)
}

func (g *Graph) scalarLeft(kind BinaryKind, c float64, x Handle) (Handle, error) {
	imm, err := g.Immediate(c)
	if err != nil {
		return g.fail("scalarLeft", err)
	}
	return g.AddBinary(kind, imm, x)
}

// --- Views: reshape, permute, transpose ---

// Reshape emits a view of x under new_shape, which may contain at most one
// -1 placeholder standing in for an implicit dimension (§4.3). The -1
// never survives into the stored node's shape.
func (g *Graph) Reshape(x Handle, newShape []int) (Handle, error) {
	const op = "Reshape"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	resolved, err := shapes.ResolveReshape(x.Shape().Size(), newShape)
	if err != nil {
		return g.fail(op, err)
	}
	return g.AddView(x, resolved, shapes.ComputeStrides(resolved))
}

// ReshapeFlat is a convenience for rank-1 reshape: Reshape(x, [length]).
func (g *Graph) ReshapeFlat(x Handle, length int) (Handle, error) {
	return g.Reshape(x, []int{length})
}

// Permute reorders x's axes according to dims: dims[i] names where source
// axis i goes in the output (out_shape[dims[i]] = x.shape[i]), the
// convention this package commits to -- see DESIGN.md OQ-2. Every entry in
// dims must be distinct after normalization.
func (g *Graph) Permute(x Handle, dims []int) (Handle, error) {
	const op = "Permute"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	xShape := x.Shape()
	rank := xShape.Rank()
	if len(dims) != rank {
		return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{xShape}, Dims: dims, Reason: fmt.Sprintf("permute needs exactly %d axes, got %d", rank, len(dims))}))
	}
	normalized := make([]int, rank)
	seen := make([]bool, rank)
	for i, d := range dims {
		nd, err := shapes.NormalizeAxis(d, rank)
		if err != nil {
			return g.fail(op, err)
		}
		if seen[nd] {
			return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{xShape}, Dims: dims, Reason: fmt.Sprintf("destination axis %d is targeted by more than one source axis", nd)}))
		}
		seen[nd] = true
		normalized[i] = nd
	}
	outShape := make(shapes.Shape, rank)
	for i := range rank {
		outShape[normalized[i]] = xShape[i]
	}
	return g.AddView(x, outShape, shapes.ComputeStrides(outShape))
}

// Transpose reverses all axes: Permute(x, reverse(0..rank)).
func (g *Graph) Transpose(x Handle) (Handle, error) {
	rank := x.Shape().Rank()
	dims := make([]int, rank)
	for i := range rank {
		dims[i] = rank - 1 - i
	}
	return g.Permute(x, dims)
}

// InversePermutation returns the permutation that undoes dims: applying
// Permute with it after Permute(x, dims) restores the original shape
// (§8's round-trip law).
func InversePermutation(dims []int) []int {
	inverse := make([]int, len(dims))
	for i, d := range dims {
		inverse[d] = i
	}
	return inverse
}
