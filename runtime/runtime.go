// Package runtime defines the capabilities a host environment must provide so
// that the rest of turbulence can spawn work and measure or wait on time without
// knowing which scheduler or clock sits underneath.
//
// Implementations live in sibling packages: native (goroutine pool), eventloop
// (single cooperative loop with a millisecond clock) and sim (deterministic,
// manually advanced clock for tests).
package runtime

import (
	"context"
	"time"
)

// Runtime is the set of scheduling and timing operations a host environment
// exposes. I, D and V are the implementation's instant, delay and interval
// types. Implementations must be safe for concurrent use.
type Runtime[I comparable, D Delay, V Interval[I]] interface {
	// Spawn schedules task to run concurrently and returns immediately. No
	// ordering is guaranteed relative to the caller or to other tasks.
	Spawn(task func())

	// Now returns the current instant.
	Now() I

	// Elapsed returns the time since instant, which must come from this runtime.
	Elapsed(instant I) time.Duration

	// DurationBetween returns later - earlier. It panics if later precedes
	// earlier, the same way a failed assertion would.
	DurationBetween(earlier, later I) time.Duration

	// Delay returns a timer that completes once d has passed.
	Delay(d time.Duration) D

	// Interval returns a lazy sequence of instants spaced at least d apart.
	Interval(d time.Duration) V
}

// Delay completes exactly once, no sooner than its configured duration after
// creation. Stopping it is the only way to cancel.
type Delay interface {
	// Done is closed when the delay completes. It is never closed for a delay
	// that was stopped first.
	Done() <-chan struct{}

	// Wait suspends until the delay completes, ctx ends, or the delay is stopped.
	Wait(ctx context.Context) error

	// Stop discards the delay, reporting whether it prevented completion.
	Stop() bool
}

// Interval yields instants no more often than once per period. At most one tick
// is held for a slow consumer; the next one is armed a full period after the
// tick that was drawn.
type Interval[I comparable] interface {
	// Next suspends until the next tick and returns its instant.
	Next(ctx context.Context) (I, error)

	// Stop discards the interval. Pending and future calls to Next return
	// core.ErrStopped.
	Stop()
}
