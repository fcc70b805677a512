package timers

import (
	"context"
	"sync/atomic"

	"github.com/Healthire/turbulence/core"
)

const (
	delayPending int32 = iota
	delayDone
	delayStopped
)

// Delay is a one-shot timer. The owning binding calls Fire once the configured
// duration has passed; whichever of Fire and Stop runs first wins.
type Delay struct {
	state   atomic.Int32
	done    chan struct{}
	stopped chan struct{}
	cancel  func()
}

// NewDelay returns a pending delay. cancel, if set, is called when Stop wins
// and should release whatever the binding armed.
func NewDelay() *Delay {
	return &Delay{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Completed returns a delay that has already fired.
func Completed() *Delay {
	d := NewDelay()
	d.Fire()
	return d
}

// SetCancel installs the function Stop uses to release the armed timer. It
// must be called before the delay is handed to a caller.
func (d *Delay) SetCancel(cancel func()) {
	d.cancel = cancel
}

// Fire completes the delay. It reports false if the delay already fired or
// was stopped.
func (d *Delay) Fire() bool {
	if !d.state.CompareAndSwap(delayPending, delayDone) {
		return false
	}

	close(d.done)
	return true
}

func (d *Delay) Done() <-chan struct{} {
	return d.done
}

func (d *Delay) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-d.stopped:
		return core.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Delay) Stop() bool {
	if !d.state.CompareAndSwap(delayPending, delayStopped) {
		return false
	}

	close(d.stopped)
	if d.cancel != nil {
		d.cancel()
	}

	return true
}
