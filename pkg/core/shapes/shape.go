// Package shapes implements the shape/stride algebra that underlies the
// computation graph builder: broadcasting, canonical stride computation,
// axis normalization and reduction-shape bookkeeping.
//
// Every function here is pure: given the same inputs it always returns the
// same output (or the same error), and nothing here mutates its arguments.
package shapes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dim is a single axis size or a signed axis index. Negative axis indices
// are accepted by NormalizeAxis and normalized modulo the rank.
type Dim = int

// Shape is an ordered sequence of dimensions. A nil/empty Shape is a
// scalar. Every entry must be >= 1; reshape is the only place a -1
// "implicit dimension" placeholder is accepted, and it never survives into
// a Shape value returned by this package.
type Shape []Dim

// Strides is the per-axis element stride, same length as a Shape.
type Strides []Dim

// Rank is the number of axes.
func (s Shape) Rank() int { return len(s) }

// IsScalar reports whether s has no axes.
func (s Shape) IsScalar() bool { return len(s) == 0 }

// Size is the product of all dimensions (1 for a scalar).
func (s Shape) Size() int {
	size := 1
	for _, d := range s {
		size *= d
	}
	return size
}

// Clone returns an independent copy of s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders a shape the way the graph's diagnostics do, e.g. "[3 4 5]"
// or "[]" for a scalar.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// String renders strides the same way shapes are rendered.
func (s Strides) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Clone returns an independent copy of s.
func (s Strides) Clone() Strides {
	if s == nil {
		return nil
	}
	out := make(Strides, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two stride vectors match exactly.
func (s Strides) Equal(o Strides) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// NormalizeAxis maps a possibly-negative axis into [0, rank), the way
// Python-style indexing does: axis=-1 refers to the last axis.
//
// Fails with a ShapeError if rank is 0 (there is no valid axis on a
// scalar) or if axis, once normalized, still falls outside [0, rank).
func NormalizeAxis(axis, rank int) (int, error) {
	if rank == 0 {
		return 0, errors.WithStack(&ShapeError{Op: "NormalizeAxis", Reason: "cannot normalize an axis against a rank-0 (scalar) shape"})
	}
	normalized := ((axis % rank) + rank) % rank
	if normalized < 0 || normalized >= rank {
		return 0, errors.WithStack(&ShapeError{Op: "NormalizeAxis", Dims: []int{axis}, Reason: fmt.Sprintf("axis %d out of range for rank %d", axis, rank)})
	}
	return normalized, nil
}

// Broadcast computes the shape resulting from aligning a and b to the
// right and expanding any size-1 dimension to match the other operand, the
// standard numpy-style broadcasting rule.
//
// Unmatched leading dimensions of the longer shape pass through unchanged.
// The result is symmetric: Broadcast(a, b) and Broadcast(b, a) always
// produce equal shapes.
func Broadcast(a, b Shape) (Shape, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	for i := range rank {
		da := dimFromRight(a, i)
		db := dimFromRight(b, i)
		switch {
		case da == 0:
			out[rank-1-i] = db
		case db == 0:
			out[rank-1-i] = da
		case da == 1:
			out[rank-1-i] = db
		case db == 1 || da == db:
			out[rank-1-i] = da
		default:
			return nil, errors.WithStack(&ShapeError{
				Op:     "Broadcast",
				Shapes: []Shape{a, b},
				Reason: fmt.Sprintf("dimensions %d and %d are not broadcast-compatible (aligned from the right at position %d)", da, db, i),
			})
		}
	}
	return out, nil
}

// dimFromRight returns the dimension of s at offset i counting from the
// last axis (i=0 is the last axis), or 0 if i is past the start of s (i.e.
// that axis doesn't exist on this operand -- the "unmatched leading dims"
// case).
func dimFromRight(s Shape, i int) int {
	idx := len(s) - 1 - i
	if idx < 0 {
		return 0
	}
	return s[idx]
}

// ComputeStrides computes the unique canonical stride layout for shape:
// walking right to left, a dimension of size 1 gets stride 0 (so
// broadcasting is a no-op for a consumer), otherwise it gets the running
// product of the dimensions to its right.
func ComputeStrides(shape Shape) Strides {
	strides := make(Strides, len(shape))
	running := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 1 {
			strides[i] = 0
		} else {
			strides[i] = running
		}
		running *= shape[i]
	}
	return strides
}

// ReduceShape computes the shape that results from reducing x's shape
// along dims. If dims is empty, it reduces all axes: the empty shape
// (scalar) if keepdim is false, or a shape of all-1s with the same rank if
// keepdim is true. Otherwise, every axis present in dims is either
// collapsed to size 1 (keepdim) or removed (!keepdim); the remaining axes
// keep their relative order.
//
// dims must already be normalized (0 <= axis < rank); ReduceShape fails if
// any axis is out of range or if there are more axes than the rank.
func ReduceShape(x Shape, dims []int, keepdim bool) (Shape, error) {
	rank := x.Rank()
	if len(dims) > rank {
		return nil, errors.WithStack(&ShapeError{Op: "ReduceShape", Shapes: []Shape{x}, Dims: dims, Reason: fmt.Sprintf("cannot reduce %d axes on a rank-%d shape", len(dims), rank)})
	}
	if len(dims) == 0 {
		if keepdim {
			out := make(Shape, rank)
			for i := range out {
				out[i] = 1
			}
			return out, nil
		}
		return Shape{}, nil
	}

	reduced := make([]bool, rank)
	for _, axis := range dims {
		if axis < 0 || axis >= rank {
			return nil, errors.WithStack(&ShapeError{Op: "ReduceShape", Shapes: []Shape{x}, Dims: dims, Reason: fmt.Sprintf("axis %d out of range for rank %d", axis, rank)})
		}
		reduced[axis] = true
	}

	out := make(Shape, 0, rank)
	for axis, dim := range x {
		if reduced[axis] {
			if keepdim {
				out = append(out, 1)
			}
			continue
		}
		out = append(out, dim)
	}
	return out, nil
}

// NormalizeReduceDims normalizes, sorts and deduplicates a list of
// reduction axes against rank. Unlike ReduceShape (which expects already
// normalized axes), this is the entry point op constructors use for
// caller-supplied axis lists: it fails with a ShapeError on a duplicate
// axis (each reduction axis must be listed once, per spec).
func NormalizeReduceDims(dims []int, rank int) ([]int, error) {
	if len(dims) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(dims))
	out := make([]int, 0, len(dims))
	for _, axis := range dims {
		normalized, err := NormalizeAxis(axis, rank)
		if err != nil {
			return nil, errors.WithStack(&ShapeError{Op: "NormalizeReduceDims", Dims: dims, Reason: fmt.Sprintf("axis %d: %v", axis, err)})
		}
		if seen[normalized] {
			return nil, errors.WithStack(&ShapeError{Op: "NormalizeReduceDims", Dims: dims, Reason: fmt.Sprintf("axis %d listed more than once", normalized)})
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	sortInts(out)
	return out, nil
}

// sortInts sorts a small slice of ints in place (insertion sort is plenty
// for the axis-count ranges this package ever sees).
func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ResolveReshape resolves a reshape target that may contain a single -1
// placeholder standing in for "whatever makes the element count match".
//
// It fails if more than one -1 is present, or if the known dimensions
// don't evenly divide the source size N.
func ResolveReshape(n int, target []int) (Shape, error) {
	implicitAt := -1
	known := 1
	for i, d := range target {
		if d == -1 {
			if implicitAt != -1 {
				return nil, errors.WithStack(&ShapeError{Op: "Reshape", Reason: fmt.Sprintf("at most one -1 is allowed in a reshape target, got it at both %d and %d", implicitAt, i)})
			}
			implicitAt = i
			continue
		}
		if d <= 0 {
			return nil, errors.WithStack(&ShapeError{Op: "Reshape", Reason: fmt.Sprintf("reshape target dimension %d at axis %d must be positive (or -1)", d, i)})
		}
		known *= d
	}

	resolved := make(Shape, len(target))
	copy(resolved, target)
	if implicitAt == -1 {
		if known != n {
			return nil, errors.WithStack(&ShapeError{Op: "Reshape", Reason: fmt.Sprintf("cannot reshape %d elements into shape %v (product %d)", n, target, known)})
		}
		return resolved, nil
	}
	if known == 0 || n%known != 0 {
		return nil, errors.WithStack(&ShapeError{Op: "Reshape", Reason: fmt.Sprintf("cannot resolve implicit dimension: %d elements do not divide evenly by %d", n, known)})
	}
	resolved[implicitAt] = n / known
	return resolved, nil
}
