package shapes

import (
	"fmt"

	"github.com/pkg/errors"
)

// UncheckedAxis is used in CheckDims/AssertDims for an axis whose
// dimension doesn't matter to the caller.
const UncheckedAxis = -1

// HasShape is implemented by anything with an associated Shape, such as
// the graph package's Handle.
type HasShape interface {
	Shape() Shape
}

// CheckDims reports whether s has the given rank and dimensions. A
// dimension value of UncheckedAxis (-1) in dimensions matches any size.
//
// This is the non-panicking counterpart used by code (e.g. a scheduler or
// codegen pass) that wants to validate shapes it receives from this
// package without taking down the process on a mismatch.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.WithStack(&ShapeError{Op: "CheckDims", Shapes: []Shape{s}, Reason: fmt.Sprintf("shape %s has rank %d, wanted %d", s, s.Rank(), len(dimensions))})
	}
	for axis, want := range dimensions {
		if want != UncheckedAxis && s[axis] != want {
			return errors.WithStack(&ShapeError{Op: "CheckDims", Shapes: []Shape{s}, Dims: dimensions, Reason: fmt.Sprintf("shape %s axis %d has dimension %d, wanted %d", s, axis, s[axis], want)})
		}
	}
	return nil
}

// AssertDims panics if CheckDims would return an error. Intended for
// downstream-pass code that treats a shape mismatch as a programming bug
// worth documenting inline, not a recoverable condition -- the graph
// builder's own public API never calls this, it only returns errors (see
// ShapeError).
func (s Shape) AssertDims(dimensions ...int) {
	if err := s.CheckDims(dimensions...); err != nil {
		panic(err)
	}
}

// AssertRank panics unless s has exactly the given rank.
func (s Shape) AssertRank(rank int) {
	if s.Rank() != rank {
		panic(errors.WithStack(&ShapeError{Op: "AssertRank", Shapes: []Shape{s}, Reason: fmt.Sprintf("shape %s has rank %d, wanted %d", s, s.Rank(), rank)}))
	}
}

// AssertShape panics unless s is exactly equal to want.
func (s Shape) AssertShape(want Shape) {
	if !s.Equal(want) {
		panic(errors.WithStack(&ShapeError{Op: "AssertShape", Shapes: []Shape{s, want}, Reason: fmt.Sprintf("shape %s does not match expected %s", s, want)}))
	}
}
