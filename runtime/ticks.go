package runtime

import (
	"context"
	"iter"
)

// Ticks adapts iv to a range-over-func sequence. The sequence ends when ctx
// ends, iv is stopped, or the loop body breaks. It does not stop iv.
func Ticks[I comparable](ctx context.Context, iv Interval[I]) iter.Seq[I] {
	return func(yield func(I) bool) {
		for {
			t, err := iv.Next(ctx)
			if err != nil {
				return
			}

			if !yield(t) {
				return
			}
		}
	}
}
