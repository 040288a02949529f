package graph_test

import (
	"testing"

	"github.com/czankel/gigagrad/pkg/core/graph"
	"github.com/czankel/gigagrad/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphAddInputAndWeight(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3, 4})
	require.NoError(t, err)
	w, err := g.AddWeight(shapes.Shape{4, 5})
	require.NoError(t, err)

	assert.Equal(t, graph.NodeKindTensor, x.Kind())
	assert.Equal(t, graph.NodeKindTensor, w.Kind())
	assert.Len(t, g.Inputs(), 2)
	assert.Len(t, g.Weights(), 1)

	// weights is always a subset of inputs (§3 invariant 6).
	inputIdx := map[int]bool{}
	for _, h := range g.Inputs() {
		inputIdx[h.Index()] = true
	}
	for _, h := range g.Weights() {
		assert.True(t, inputIdx[h.Index()])
	}
}

func TestGraphImmediateNoCSE(t *testing.T) {
	// Per §9, this core performs no CSE: two Immediate calls with the
	// same value produce two distinct nodes, not a shared one.
	g := graph.New("t")
	a, err := g.Immediate(3.5)
	require.NoError(t, err)
	b, err := g.Immediate(3.5)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Index(), b.Index())
	assert.True(t, a.Shape().IsScalar())
	assert.True(t, b.Shape().IsScalar())
}

func TestHandleIsValid(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2})
	require.NoError(t, err)
	assert.True(t, x.IsValid())

	var zero graph.Handle
	assert.False(t, zero.IsValid())
}

func TestTensorDataRoundTrip(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 2})
	require.NoError(t, err)

	data, err := x.TensorData()
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, x.SetTensorData([]float64{1, 2, 3, 4}))
	data, err = x.TensorData()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, data)
}

func TestTensorDataKindError(t *testing.T) {
	g := graph.New("t")
	imm, err := g.Immediate(1)
	require.NoError(t, err)

	_, err = imm.TensorData()
	require.Error(t, err)
	var kindErr *graph.KindError
	assert.ErrorAs(t, err, &kindErr)
}

func TestOperandIndexOrdering(t *testing.T) {
	// every op node's operand indices are strictly less than its own
	// index (§8 testable property: topological ordering by position).
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{2, 3})
	require.NoError(t, err)
	y, err := g.Exp(x)
	require.NoError(t, err)
	z, err := g.Add(x, y)
	require.NoError(t, err)

	assert.Less(t, x.Index(), y.Index())
	assert.Less(t, x.Index(), z.Index())
	assert.Less(t, y.Index(), z.Index())

	for h := range g.Nodes() {
		switch h.Kind() {
		case graph.NodeKindUnary:
			_, operand, err := h.UnaryOperand()
			require.NoError(t, err)
			assert.Less(t, operand.Index(), h.Index())
		case graph.NodeKindBinary:
			_, a, b, err := h.BinaryOperands()
			require.NoError(t, err)
			assert.Less(t, a.Index(), h.Index())
			assert.Less(t, b.Index(), h.Index())
		}
	}
}

func TestInvariantShapeStridesSameLength(t *testing.T) {
	g := graph.New("t")
	x, err := g.AddInput(shapes.Shape{3, 1, 5})
	require.NoError(t, err)
	y, err := g.AddInput(shapes.Shape{4, 5})
	require.NoError(t, err)
	z, err := g.Add(x, y)
	require.NoError(t, err)

	for h := range g.Nodes() {
		assert.Equal(t, h.Shape().Rank(), len(h.Strides()))
	}
	_ = z
}

func TestForeignHandleRejected(t *testing.T) {
	g1 := graph.New("g1")
	g2 := graph.New("g2")
	x, err := g1.AddInput(shapes.Shape{2})
	require.NoError(t, err)

	_, err = g2.Exp(x)
	require.Error(t, err)
	var internalErr *graph.InternalError
	assert.ErrorAs(t, err, &internalErr)
}

func TestGraphStringContainsNodeCount(t *testing.T) {
	g := graph.New("demo")
	_, err := g.AddInput(shapes.Shape{2, 2})
	require.NoError(t, err)

	s := g.String()
	assert.Contains(t, s, "demo")
	assert.Contains(t, s, "1 nodes")
	assert.Equal(t, s, g.Dump())
}
