package graph

import "fmt"

// KindError is returned when a variant-specific accessor (e.g. the data
// slot on a Tensor node) is invoked against a node of the wrong NodeKind.
type KindError struct {
	Op       string
	Got      NodeKind
	Expected NodeKind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("graph: %s: node is a %s, expected a %s", e.Op, e.Got, e.Expected)
}

// InternalError marks a condition the core's own invariants should have
// prevented: a corrupt variant tag, or a Handle indexing outside its
// Graph's node arena. It always indicates a bug in the core or a misuse of
// a Handle after its Graph became invalid -- never a caller-correctable
// input problem (that's a ShapeError or KindError instead).
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("graph: internal error: %s", e.Reason)
}
