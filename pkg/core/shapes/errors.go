package shapes

import (
	"fmt"
	"strings"
)

// ShapeError reports a shape/stride algebra violation: an incompatible
// broadcast, a reshape element-count mismatch, too many reduction axes, an
// out-of-range axis, or similar. It carries enough structure (the
// offending operator, shapes and axes) for a caller to build a precise
// message, while also satisfying the error interface directly.
type ShapeError struct {
	Op     string
	Shapes []Shape
	Dims   []int
	Reason string
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	b.WriteString("shapes: ")
	if e.Op != "" {
		fmt.Fprintf(&b, "%s: ", e.Op)
	}
	b.WriteString(e.Reason)
	if len(e.Shapes) > 0 {
		parts := make([]string, len(e.Shapes))
		for i, s := range e.Shapes {
			parts[i] = s.String()
		}
		fmt.Fprintf(&b, " (shapes: %s)", strings.Join(parts, ", "))
	}
	if len(e.Dims) > 0 {
		fmt.Fprintf(&b, " (dims: %v)", e.Dims)
	}
	return b.String()
}
