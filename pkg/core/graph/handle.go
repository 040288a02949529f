package graph

import (
	"fmt"

	"github.com/czankel/gigagrad/pkg/core/shapes"
)

// Handle is a lightweight reference to a node: a graph identity plus an
// index into its node arena. Handles are cheap to copy and compare, and
// must never outlive the Graph that produced them (§5).
type Handle struct {
	g     *Graph
	index int
}

// invalidHandle is what constructors return alongside a non-nil error.
var invalidHandle = Handle{}

// Graph returns the Graph this handle belongs to.
func (h Handle) Graph() *Graph { return h.g }

// Index returns the node's position in its graph's arena. Operand indices
// are always strictly less than a consumer's index (§3 invariant 7,
// verified by the append-only Graph.registerNode).
func (h Handle) Index() int { return h.index }

// IsValid reports whether h refers to an existing node in a live graph,
// without panicking -- the O(1) check a collaborator should make before
// calling any other accessor on a handle it isn't sure about.
func (h Handle) IsValid() bool {
	return h.g != nil && h.index >= 0 && h.index < len(h.g.nodes)
}

// Equal reports whether two handles refer to the same node of the same
// graph (identity comparison, as the data model specifies).
func (h Handle) Equal(o Handle) bool {
	return h.g == o.g && h.index == o.index
}

// node resolves the handle to its backing arena entry, panicking with an
// *InternalError if the handle has no Graph or its index is outside that
// Graph's node arena -- a caller bug per §7.
// A collaborator that wants to turn this back into an error can recover it
// with exceptions.TryCatch[*InternalError].
func (h Handle) node() *node {
	if !h.IsValid() {
		panic(&InternalError{Reason: "Handle refers to an index outside its Graph's node arena (stale or foreign handle)"})
	}
	return &h.g.nodes[h.index]
}

// Shape returns the node's output shape. Implements shapes.HasShape.
func (h Handle) Shape() shapes.Shape { return h.node().shape }

// Strides returns the node's output strides (always len(Strides) ==
// len(Shape), per §3 invariant 1).
func (h Handle) Strides() shapes.Strides { return h.node().strides }

// Kind returns which closed node variant h refers to.
func (h Handle) Kind() NodeKind { return h.node().Kind() }

// String renders the handle as "#<index> <payload> -> <shape>", the same
// format Graph.String() uses for every node in index order.
func (h Handle) String() string {
	n := h.node()
	return fmt.Sprintf("#%d %s -> %s", h.index, n.payload.String(), n.shape.String())
}

// TensorData returns the external buffer handle bound to a Tensor node's
// data slot (nil if never set). It fails with a *KindError if h does not
// refer to a Tensor node.
func (h Handle) TensorData() (any, error) {
	n := h.node()
	t, ok := n.payload.(*tensorPayload)
	if !ok {
		return nil, &KindError{Op: "TensorData", Got: n.Kind(), Expected: NodeKindTensor}
	}
	return t.data, nil
}

// SetTensorData binds the external buffer handle for a Tensor node. This
// is the sole coupling point to an external runtime/storage layer (§5);
// the builder never dereferences data itself. It fails with a *KindError
// if h does not refer to a Tensor node.
func (h Handle) SetTensorData(data any) error {
	n := h.node()
	t, ok := n.payload.(*tensorPayload)
	if !ok {
		return &KindError{Op: "SetTensorData", Got: n.Kind(), Expected: NodeKindTensor}
	}
	t.data = data
	return nil
}

// ImmediateValue returns the scalar literal value of an Immediate node. It
// fails with a *KindError if h does not refer to an Immediate node.
func (h Handle) ImmediateValue() (float64, error) {
	n := h.node()
	im, ok := n.payload.(*immediatePayload)
	if !ok {
		return 0, &KindError{Op: "ImmediateValue", Got: n.Kind(), Expected: NodeKindImmediate}
	}
	return im.value, nil
}

// UnaryOperand returns the kind and operand handle of a UnaryOp node. It
// fails with a *KindError if h does not refer to a UnaryOp node.
func (h Handle) UnaryOperand() (UnaryKind, Handle, error) {
	n := h.node()
	u, ok := n.payload.(*unaryPayload)
	if !ok {
		return UnaryInvalid, invalidHandle, &KindError{Op: "UnaryOperand", Got: n.Kind(), Expected: NodeKindUnary}
	}
	return u.op, Handle{g: h.g, index: u.x}, nil
}

// BinaryOperands returns the kind and both operand handles of a BinaryOp
// node. It fails with a *KindError if h does not refer to a BinaryOp node.
func (h Handle) BinaryOperands() (BinaryKind, Handle, Handle, error) {
	n := h.node()
	b, ok := n.payload.(*binaryPayload)
	if !ok {
		return BinaryInvalid, invalidHandle, invalidHandle, &KindError{Op: "BinaryOperands", Got: n.Kind(), Expected: NodeKindBinary}
	}
	return b.op, Handle{g: h.g, index: b.x}, Handle{g: h.g, index: b.y}, nil
}

// ReduceInfo returns the kind, operand, reduction axes and keepdim flag of
// a ReduceOp node. It fails with a *KindError if h does not refer to a
// ReduceOp node.
func (h Handle) ReduceInfo() (ReduceKind, Handle, []int, bool, error) {
	n := h.node()
	r, ok := n.payload.(*reducePayload)
	if !ok {
		return ReduceInvalid, invalidHandle, nil, false, &KindError{Op: "ReduceInfo", Got: n.Kind(), Expected: NodeKindReduce}
	}
	dims := make([]int, len(r.dims))
	copy(dims, r.dims)
	return r.op, Handle{g: h.g, index: r.x}, dims, r.keepdim, nil
}

// ViewOperand returns the operand handle of a ViewOp node. It fails with a
// *KindError if h does not refer to a ViewOp node.
func (h Handle) ViewOperand() (Handle, error) {
	n := h.node()
	v, ok := n.payload.(*viewPayload)
	if !ok {
		return invalidHandle, &KindError{Op: "ViewOperand", Got: n.Kind(), Expected: NodeKindView}
	}
	return Handle{g: h.g, index: v.x}, nil
}
