package core

import (
	"math"
	"time"
)

// Clock is a source of monotonic readings, relative to an arbitrary origin that
// is fixed for the lifetime of the Clock.
type Clock interface {
	Monotonic() time.Duration
}

// DefaultClock reads the platform monotonic clock.
type DefaultClock struct{}

func (c DefaultClock) Monotonic() time.Duration {
	return monotonic()
}

// Between returns later - earlier, failing loudly if later precedes earlier.
func Between(earlier, later time.Duration) time.Duration {
	if later < earlier {
		ContractViolation("later %s precedes earlier %s", later, earlier)
	}

	return later - earlier
}

// Deadline returns now + d, saturating at the largest representable Duration
// so that very long waits never wrap around into the past.
func Deadline(now, d time.Duration) time.Duration {
	if d > 0 && d > math.MaxInt64-now {
		return math.MaxInt64
	}

	return now + d
}
