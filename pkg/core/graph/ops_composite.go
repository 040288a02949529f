package graph

import (
	"math"

	"github.com/czankel/gigagrad/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Cos computes cos(x) as sin(x + pi/2), per §4.3 -- SIN is the only
// trigonometric opcode in the closed unary algebra.
func (g *Graph) Cos(x Handle) (Handle, error) {
	shifted, err := g.AddScalar(x, math.Pi/2)
	if err != nil {
		return g.fail("Cos", err)
	}
	return g.Sin(shifted)
}

// Sigmoid computes 1 / (1 + exp(-x)), per §4.3.
func (g *Graph) Sigmoid(x Handle) (Handle, error) {
	negX, err := g.Neg(x)
	if err != nil {
		return g.fail("Sigmoid", err)
	}
	expNegX, err := g.Exp(negX)
	if err != nil {
		return g.fail("Sigmoid", err)
	}
	denom, err := g.AddScalar(expNegX, 1)
	if err != nil {
		return g.fail("Sigmoid", err)
	}
	one, err := g.Immediate(1)
	if err != nil {
		return g.fail("Sigmoid", err)
	}
	return g.Div(one, denom)
}

// Min computes elementwise min(x, y) as -max(-x, -y), per §4.3 -- there is
// no dedicated MIN opcode in the closed binary algebra.
func (g *Graph) Min(x, y Handle) (Handle, error) {
	negX, err := g.Neg(x)
	if err != nil {
		return g.fail("Min", err)
	}
	negY, err := g.Neg(y)
	if err != nil {
		return g.fail("Min", err)
	}
	negMax, err := g.Max(negX, negY)
	if err != nil {
		return g.fail("Min", err)
	}
	return g.Neg(negMax)
}

// --- Comparisons, all decomposed onto CMP_EQ and MAX (§4.3, §8 scenario 8) ---

// GreaterThan computes x > y as max(x, y) == x, per §8 scenario 8.
func (g *Graph) GreaterThan(x, y Handle) (Handle, error) {
	m, err := g.Max(x, y)
	if err != nil {
		return g.fail("GreaterThan", err)
	}
	return g.Equal(m, x)
}

// LessThan computes x < y as GreaterThan(y, x).
func (g *Graph) LessThan(x, y Handle) (Handle, error) {
	return g.GreaterThan(y, x)
}

// LessOrEqual computes x <= y as max(x - y, 0) == 0.
func (g *Graph) LessOrEqual(x, y Handle) (Handle, error) {
	diff, err := g.Sub(x, y)
	if err != nil {
		return g.fail("LessOrEqual", err)
	}
	zero, err := g.Immediate(0)
	if err != nil {
		return g.fail("LessOrEqual", err)
	}
	m, err := g.Max(diff, zero)
	if err != nil {
		return g.fail("LessOrEqual", err)
	}
	return g.Equal(m, zero)
}

// GreaterOrEqual computes x >= y as min(x - y, 0) == 0.
func (g *Graph) GreaterOrEqual(x, y Handle) (Handle, error) {
	diff, err := g.Sub(x, y)
	if err != nil {
		return g.fail("GreaterOrEqual", err)
	}
	zero, err := g.Immediate(0)
	if err != nil {
		return g.fail("GreaterOrEqual", err)
	}
	m, err := g.Min(diff, zero)
	if err != nil {
		return g.fail("GreaterOrEqual", err)
	}
	return g.Equal(m, zero)
}

// --- Reductions: sum, max, min, each with three call signatures folded
// into one variadic axes parameter (§4.3): g.Sum(x, false) reduces every
// axis, g.Sum(x, false, 1) reduces axis 1, g.Sum(x, false, 0, 2) reduces
// axes 0 and 2. ---

// Sum reduces x by addition over axes (all axes if none given).
func (g *Graph) Sum(x Handle, keepdim bool, axes ...int) (Handle, error) {
	return g.AddReduce(ReduceSum, x, axes, keepdim)
}

// MaxReduce reduces x by maximum over axes (all axes if none given). Named
// MaxReduce, not Max, because Max is already the elementwise binary op.
func (g *Graph) MaxReduce(x Handle, keepdim bool, axes ...int) (Handle, error) {
	return g.AddReduce(ReduceMax, x, axes, keepdim)
}

// MinReduce reduces x by minimum over axes as -max(-x), since MIN has no
// dedicated ReduceKind (§4.3).
func (g *Graph) MinReduce(x Handle, keepdim bool, axes ...int) (Handle, error) {
	negX, err := g.Neg(x)
	if err != nil {
		return g.fail("MinReduce", err)
	}
	reduced, err := g.AddReduce(ReduceMax, negX, axes, keepdim)
	if err != nil {
		return g.fail("MinReduce", err)
	}
	return g.Neg(reduced)
}

// MatMul computes matrix multiplication decomposed entirely onto the
// existing broadcast and reduce primitives -- there is no dedicated
// contraction opcode (§4.3, §9 OQ-3). It follows numpy.matmul's
// conventions for non-2D operands:
//
//  1. A rank-1 left operand is treated as a row vector (shape [1, K]); a
//     rank-1 right operand is treated as a column vector (shape [K, 1]).
//     These synthetic axes are squeezed back out of the result.
//  2. The shared contraction dimension (x's last axis, y's second-to-last)
//     must match.
//  3. x gets a trailing size-1 axis, y gets a size-1 axis inserted before
//     its last two; elementwise Mul then broadcasts the two to
//     (..., A, K, B), and a keepdim=false Sum over axis -2 contracts K,
//     leaving (..., A, B). Leading batch axes broadcast as usual.
func (g *Graph) MatMul(x, y Handle) (Handle, error) {
	const op = "MatMul"
	if err := g.checkOperand(op, x); err != nil {
		return g.fail(op, err)
	}
	if err := g.checkOperand(op, y); err != nil {
		return g.fail(op, err)
	}

	xShape, yShape := x.Shape(), y.Shape()
	if xShape.Rank() == 0 || yShape.Rank() == 0 {
		return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{xShape, yShape}, Reason: "matmul operands must have rank >= 1"}))
	}

	xPadded, yPadded := x, y
	xWasVector, yWasVector := false, false
	var err error

	if xShape.Rank() == 1 {
		xPadded, err = g.Reshape(x, []int{1, xShape[0]})
		if err != nil {
			return g.fail(op, err)
		}
		xWasVector = true
	}
	if yShape.Rank() == 1 {
		yPadded, err = g.Reshape(y, []int{yShape[0], 1})
		if err != nil {
			return g.fail(op, err)
		}
		yWasVector = true
	}

	xs, ys := xPadded.Shape(), yPadded.Shape()
	rankX, rankY := xs.Rank(), ys.Rank()
	k1, k2 := xs[rankX-1], ys[rankY-2]
	if k1 != k2 {
		return g.fail(op, errors.WithStack(&shapes.ShapeError{Op: op, Shapes: []shapes.Shape{xShape, yShape}, Reason: "inner dimensions must match"}))
	}

	xExtShape := append(xs.Clone(), 1)
	xExt, err := g.Reshape(xPadded, xExtShape)
	if err != nil {
		return g.fail(op, err)
	}

	yExtShape := make(shapes.Shape, rankY+1)
	copy(yExtShape[:rankY-2], ys[:rankY-2])
	yExtShape[rankY-2] = 1
	yExtShape[rankY-1] = ys[rankY-2]
	yExtShape[rankY] = ys[rankY-1]
	yExt, err := g.Reshape(yPadded, yExtShape)
	if err != nil {
		return g.fail(op, err)
	}

	prod, err := g.Mul(xExt, yExt)
	if err != nil {
		return g.fail(op, err)
	}
	result, err := g.Sum(prod, false, -2)
	if err != nil {
		return g.fail(op, err)
	}

	switch {
	case xWasVector && yWasVector:
		// Both operands were vectors: the result is [1, 1]; numpy's
		// matmul squeezes a vector-dot-vector result to a scalar (§9
		// OQ-3).
		return g.Reshape(result, []int{})
	case xWasVector:
		return squeezeAxis(g, result, result.Shape().Rank()-2)
	case yWasVector:
		return squeezeAxis(g, result, result.Shape().Rank()-1)
	default:
		return result, nil
	}
}

// squeezeAxis drops the size-1 axis at position axis from h's shape via a
// Reshape view.
func squeezeAxis(g *Graph, h Handle, axis int) (Handle, error) {
	shape := h.Shape()
	newShape := make([]int, 0, shape.Rank()-1)
	for i, d := range shape {
		if i == axis {
			continue
		}
		newShape = append(newShape, d)
	}
	return g.Reshape(h, newShape)
}
