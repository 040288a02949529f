package shapes

import "iter"

// Iter enumerates every multi-index of s in row-major order (the last axis
// varies fastest), the same order its canonical strides (ComputeStrides)
// assume. The yielded slice is owned by the iterator; copy it if you need
// to keep it past one loop iteration.
func (s Shape) Iter() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		rank := s.Rank()
		if rank == 0 {
			yield(make([]int, 0))
			return
		}
		for _, d := range s {
			if d <= 0 {
				return
			}
		}

		index := make([]int, rank)
		for {
			if !yield(index) {
				return
			}
			axis := rank - 1
			for ; axis >= 0; axis-- {
				if s[axis] == 1 {
					continue
				}
				index[axis]++
				if index[axis] < s[axis] {
					break
				}
				index[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}
