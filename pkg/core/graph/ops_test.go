package graph_test

import (
	"testing"

	"github.com/czankel/gigagrad/pkg/core/graph"
	"github.com/czankel/gigagrad/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- §8 concrete scenarios ---

func TestScenarioBroadcastScalars(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3, 1, 5})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{4, 5})
	require.NoError(t, err)

	z, err := g.Add(x, y)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{3, 4, 5}, z.Shape())
	assert.Equal(t, shapes.Strides{20, 5, 1}, z.Strides())
}

func TestScenarioReshapeWithImplicitDim(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := g.Reshape(x, []int{6, -1})
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{6, 4}, y.Shape())
	assert.Equal(t, shapes.Strides{4, 1}, y.Strides())
}

func TestScenarioReduceAllKeepdim(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := g.Sum(x, true)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{1, 1, 1}, y.Shape())
	assert.Equal(t, shapes.Strides{0, 0, 0}, y.Strides())
}

func TestScenarioMatMulWithBatch(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{8, 3, 4})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{4, 5})
	require.NoError(t, err)

	z, err := g.MatMul(x, y)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{8, 3, 5}, z.Shape())
}

func TestScenarioMatMul1D1D(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{7})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{7})
	require.NoError(t, err)

	z, err := g.MatMul(x, y)
	require.NoError(t, err)
	// OQ-3: this core squeezes both synthetic axes down to a scalar.
	assert.Equal(t, shapes.Shape{}, z.Shape())
}

func TestScenarioMatMulVectorMatrix(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{4})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{4, 5})
	require.NoError(t, err)

	z, err := g.MatMul(x, y)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{5}, z.Shape())
}

func TestScenarioReshapeMismatchFails(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3})
	require.NoError(t, err)

	before := g.NumNodes()
	_, err = g.Reshape(x, []int{4})
	require.Error(t, err)
	assert.Equal(t, before, g.NumNodes(), "failed constructor must not append a node")
}

func TestScenarioPermuteDuplicateFails(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	before := g.NumNodes()
	_, err = g.Permute(x, []int{0, 0, 2})
	require.Error(t, err)
	assert.Equal(t, before, g.NumNodes())
}

func TestScenarioComparisonDecomposition(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{2})
	require.NoError(t, err)

	gt, err := g.GreaterThan(x, y)
	require.NoError(t, err)

	// x > y decomposes to CMP_EQ(MAX(x,y), x) (§8 scenario 8).
	kind, lhs, rhs, err := gt.BinaryOperands()
	require.NoError(t, err)
	assert.Equal(t, graph.BinaryCmpEq, kind)
	assert.True(t, rhs.Equal(x))

	maxKind, maxX, maxY, err := lhs.BinaryOperands()
	require.NoError(t, err)
	assert.Equal(t, graph.BinaryMax, maxKind)
	assert.True(t, maxX.Equal(x))
	assert.True(t, maxY.Equal(y))
}

// --- §8 laws ---

func TestLawReshapeRoundTrip(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := g.Reshape(x, []int{6, 4})
	require.NoError(t, err)
	z, err := g.Reshape(y, []int{2, 3, 4})
	require.NoError(t, err)

	assert.True(t, z.Shape().Equal(x.Shape()))
}

func TestLawDoubleTransposeIdentity(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := g.Transpose(x)
	require.NoError(t, err)
	z, err := g.Transpose(y)
	require.NoError(t, err)

	assert.True(t, z.Shape().Equal(x.Shape()))
}

func TestLawPermuteInverseRoundTrip(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	perm := []int{2, 0, 1}
	y, err := g.Permute(x, perm)
	require.NoError(t, err)

	z, err := g.Permute(y, graph.InversePermutation(perm))
	require.NoError(t, err)
	assert.True(t, z.Shape().Equal(x.Shape()))
}

func TestLawBroadcastSymmetric(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3, 1, 5})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{4, 5})
	require.NoError(t, err)

	xy, err := g.Add(x, y)
	require.NoError(t, err)
	yx, err := g.Add(y, x)
	require.NoError(t, err)
	assert.True(t, xy.Shape().Equal(yx.Shape()))
}

func TestLawSumNoAxes(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	flat, err := g.Sum(x, false)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{}, flat.Shape())

	kept, err := g.Sum(x, true)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{1, 1, 1}, kept.Shape())
}

// --- elementwise/composite op coverage ---

func TestNegIsMulByMinusOne(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3})
	require.NoError(t, err)

	n, err := g.Neg(x)
	require.NoError(t, err)
	kind, lhs, rhs, err := n.BinaryOperands()
	require.NoError(t, err)
	assert.Equal(t, graph.BinaryMul, kind)
	v, err := lhs.ImmediateValue()
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
	assert.True(t, rhs.Equal(x))
}

func TestCosRewritesToSinShift(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3})
	require.NoError(t, err)

	c, err := g.Cos(x)
	require.NoError(t, err)
	assert.Equal(t, graph.NodeKindUnary, c.Kind())
	kind, operand, err := c.UnaryOperand()
	require.NoError(t, err)
	assert.Equal(t, graph.UnarySin, kind)

	shiftKind, _, shiftAmount, err := operand.BinaryOperands()
	require.NoError(t, err)
	assert.Equal(t, graph.BinaryAdd, shiftKind)
	v, err := shiftAmount.ImmediateValue()
	require.NoError(t, err)
	assert.InDelta(t, 1.5707963267948966, v, 1e-12)
}

func TestSigmoidShape(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 2})
	require.NoError(t, err)

	s, err := g.Sigmoid(x)
	require.NoError(t, err)
	assert.True(t, s.Shape().Equal(x.Shape()))
}

func TestMinIsNegMaxNeg(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{3})
	require.NoError(t, err)

	m, err := g.Min(x, y)
	require.NoError(t, err)
	kind, neg, _, err := m.BinaryOperands()
	require.NoError(t, err)
	assert.Equal(t, graph.BinaryMul, kind)
	v, err := neg.ImmediateValue()
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
}

func TestScalarBinaryNonCommutativeOrder(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3})
	require.NoError(t, err)

	xSubC, err := g.SubScalar(x, 2)
	require.NoError(t, err)
	_, lhs, rhs, err := xSubC.BinaryOperands()
	require.NoError(t, err)
	assert.True(t, lhs.Equal(x))
	v, _ := rhs.ImmediateValue()
	assert.Equal(t, 2.0, v)

	cSubX, err := g.ScalarSub(2, x)
	require.NoError(t, err)
	_, lhs2, rhs2, err := cSubX.BinaryOperands()
	require.NoError(t, err)
	v2, _ := lhs2.ImmediateValue()
	assert.Equal(t, 2.0, v2)
	assert.True(t, rhs2.Equal(x))
}

func TestReduceAxisNormalizationAndDedup(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := g.Sum(x, false, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, shapes.Shape{3}, y.Shape())

	_, err = g.Sum(x, false, 0, 0)
	require.Error(t, err)
}

func TestAddBinaryBroadcastIncompatibleFails(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3, 4})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{5})
	require.NoError(t, err)

	before := g.NumNodes()
	_, err = g.Add(x, y)
	require.Error(t, err)
	var shapeErr *shapes.ShapeError
	assert.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, before, g.NumNodes())
}
