package timers

import (
	"context"
	"sync"

	"github.com/Healthire/turbulence/core"
)

// ArmFunc schedules fire to be called with an instant at least one period
// after prev. It returns a function that releases the scheduled timer. fire
// must not be called before ArmFunc returns.
type ArmFunc[I comparable] func(prev I, fire func(I)) (cancel func())

// Interval is a lazy periodic timer. Only one tick is armed at a time and it
// is re-armed from the instant of the tick that was last drawn, so ticks are
// never closer together than the period no matter how late the consumer is.
type Interval[I comparable] struct {
	arm ArmFunc[I]

	mtx     sync.Mutex
	pending bool
	tick    I
	cancel  func()
	closed  bool
	ready   chan struct{}
	stopped chan struct{}
}

// NewInterval arms the first tick one period after start.
func NewInterval[I comparable](start I, arm ArmFunc[I]) *Interval[I] {
	iv := &Interval[I]{
		arm:     arm,
		ready:   make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	iv.mtx.Lock()
	iv.cancel = arm(start, iv.fire)
	iv.mtx.Unlock()
	return iv
}

func (iv *Interval[I]) fire(at I) {
	iv.mtx.Lock()
	if iv.closed {
		iv.mtx.Unlock()
		return
	}

	iv.pending = true
	iv.tick = at
	iv.cancel = nil
	iv.mtx.Unlock()

	select {
	case iv.ready <- struct{}{}:
	default:
	}
}

func (iv *Interval[I]) Next(ctx context.Context) (I, error) {
	var zero I
	for {
		iv.mtx.Lock()
		if iv.closed {
			iv.mtx.Unlock()
			return zero, core.ErrStopped
		}

		if iv.pending {
			t := iv.tick
			iv.pending = false
			iv.cancel = iv.arm(t, iv.fire)
			iv.mtx.Unlock()
			return t, nil
		}
		iv.mtx.Unlock()

		select {
		case <-iv.ready:
		case <-iv.stopped:
			return zero, core.ErrStopped
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (iv *Interval[I]) Stop() {
	iv.mtx.Lock()
	defer iv.mtx.Unlock()

	if iv.closed {
		return
	}

	iv.closed = true
	close(iv.stopped)
	if iv.cancel != nil {
		iv.cancel()
		iv.cancel = nil
	}
}
