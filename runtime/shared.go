package runtime

import "time"

// Shared is a use-only handle to a Runtime. It forwards every call unchanged and
// returns the underlying instant, delay and interval types as is. Shared carries
// no lifecycle methods, so code holding one can schedule work and timers but
// cannot stop the runtime it borrows.
type Shared[I comparable, D Delay, V Interval[I]] struct {
	rt Runtime[I, D, V]
}

// Share returns a Shared handle for rt.
func Share[I comparable, D Delay, V Interval[I]](rt Runtime[I, D, V]) Shared[I, D, V] {
	return Shared[I, D, V]{rt: rt}
}

func (s Shared[I, D, V]) Spawn(task func()) {
	s.rt.Spawn(task)
}

func (s Shared[I, D, V]) Now() I {
	return s.rt.Now()
}

func (s Shared[I, D, V]) Elapsed(instant I) time.Duration {
	return s.rt.Elapsed(instant)
}

func (s Shared[I, D, V]) DurationBetween(earlier, later I) time.Duration {
	return s.rt.DurationBetween(earlier, later)
}

func (s Shared[I, D, V]) Delay(d time.Duration) D {
	return s.rt.Delay(d)
}

func (s Shared[I, D, V]) Interval(d time.Duration) V {
	return s.rt.Interval(d)
}
