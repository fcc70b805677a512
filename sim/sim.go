// Package sim is a deterministic runtime for tests. Time only moves when the
// test calls Advance, and spawned tasks run inline, in submission order, on the
// goroutine driving the clock.
//
// Tasks run by the simulation must not block waiting on the simulation's own
// timers: nothing would be left to advance the clock. Wait on them from a
// separate goroutine, or select on Delay.Done.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/internal/timers"
	"github.com/Healthire/turbulence/runtime"
)

// minPeriod is the shortest Interval period; smaller periods are clamped to it.
const minPeriod = time.Nanosecond

// Tick is a point on the virtual clock, measured from the creation of the
// Runtime that produced it.
type Tick time.Duration

func (t Tick) String() string {
	return time.Duration(t).String()
}

type (
	Delay    = timers.Delay
	Interval = timers.Interval[Tick]
	Shared   = runtime.Shared[Tick, *Delay, *Interval]
)

// Runtime is a simulated runtime. All methods are safe for concurrent use, but
// Advance and RunUntilIdle are serialized and must not be called from inside a
// task they are running.
type Runtime struct {
	driving sync.Mutex

	mtx    sync.Mutex
	now    time.Duration
	tasks  *queue.Queue
	armed  timers.Schedule[Tick]
	logger log.Logger
}

func New(logger log.Logger) *Runtime {
	return &Runtime{
		tasks:  queue.New(),
		logger: logger,
	}
}

// Borrow returns a use-only handle to r.
func Borrow(r *Runtime) Shared {
	return runtime.Share[Tick, *Delay, *Interval](r)
}

func (r *Runtime) Spawn(task func()) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.tasks.Add(task)
}

func (r *Runtime) Now() Tick {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return Tick(r.now)
}

func (r *Runtime) Elapsed(instant Tick) time.Duration {
	return r.DurationBetween(instant, r.Now())
}

func (r *Runtime) DurationBetween(earlier, later Tick) time.Duration {
	return core.Between(time.Duration(earlier), time.Duration(later))
}

func (r *Runtime) Delay(d time.Duration) *Delay {
	if d <= 0 {
		return timers.Completed()
	}

	dl := timers.NewDelay()
	e := r.schedule(core.Deadline(time.Duration(r.Now()), d), func(Tick) { dl.Fire() })
	dl.SetCancel(func() { r.unschedule(e) })
	return dl
}

func (r *Runtime) Interval(d time.Duration) *Interval {
	if d < minPeriod {
		d = minPeriod
	}

	return timers.NewInterval(r.Now(), func(prev Tick, fire func(Tick)) func() {
		e := r.schedule(core.Deadline(time.Duration(prev), d), fire)
		return func() { r.unschedule(e) }
	})
}

// Advance moves the clock forward by d, firing every timer that falls due on
// the way in due order and running spawned tasks between them.
func (r *Runtime) Advance(d time.Duration) {
	if d < 0 {
		panic(fmt.Sprintf("sim: cannot advance by negative duration %s", d))
	}

	r.driving.Lock()
	defer r.driving.Unlock()

	r.mtx.Lock()
	target := core.Deadline(r.now, d)
	r.mtx.Unlock()

	r.drain(target)
}

// RunUntilIdle runs queued tasks and fires timers already due, without moving
// the clock.
func (r *Runtime) RunUntilIdle() {
	r.driving.Lock()
	defer r.driving.Unlock()

	r.drain(time.Duration(r.Now()))
}

// Pending returns the number of queued tasks and armed timers.
func (r *Runtime) Pending() (tasks int, armed int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.tasks.Length(), r.armed.Len()
}

// NextDue returns the instant the earliest armed timer falls due.
func (r *Runtime) NextDue() (Tick, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	due, ok := r.armed.Next()
	return Tick(due), ok
}

func (r *Runtime) drain(target time.Duration) {
	for {
		r.runTasks()

		r.mtx.Lock()
		e := r.armed.PopDue(target)
		if e == nil {
			if target > r.now {
				r.now = target
			}
			idle := r.tasks.Length() == 0
			r.mtx.Unlock()

			if idle {
				return
			}
			continue
		}

		if e.Due() > r.now {
			r.now = e.Due()
		}
		at := Tick(r.now)
		r.mtx.Unlock()

		e.Fire(at)
	}
}

func (r *Runtime) runTasks() {
	for {
		r.mtx.Lock()
		if r.tasks.Length() == 0 {
			r.mtx.Unlock()
			return
		}
		task := r.tasks.Remove().(func())
		r.mtx.Unlock()

		r.run(task)
	}
}

func (r *Runtime) run(task func()) {
	defer func() {
		if p := recover(); p != nil {
			level.Error(r.logger).Log("msg", "spawned task panicked", "panic", fmt.Sprint(p))
		}
	}()

	task()
}

func (r *Runtime) schedule(due time.Duration, fire func(Tick)) *timers.Entry[Tick] {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.armed.Add(due, fire)
}

func (r *Runtime) unschedule(e *timers.Entry[Tick]) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.armed.Remove(e)
}
