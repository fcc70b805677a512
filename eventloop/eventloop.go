// Package eventloop is a single-threaded cooperative runtime. One goroutine runs
// every spawned task and every timer completion, the way a browser event loop
// does. Instants are floating point milliseconds, so nothing here depends on a
// monotonic clock type being available to callers.
package eventloop

import (
	"context"
	"flag"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/internal/timers"
	"github.com/Healthire/turbulence/runtime"
)

// minPeriod is the shortest Interval period, matching the clamping browsers
// apply to repeating timers.
const minPeriod = time.Millisecond

type Config struct {
	BatchSize int
}

func (c *Config) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.IntVar(&c.BatchSize, prefix+"batch-size", 64, "Spawned tasks run per loop turn before timers are checked again")
}

// Millis is a millisecond reading relative to the creation of the loop that
// produced it.
type Millis float64

func (m Millis) duration() time.Duration {
	return time.Duration(math.Round(float64(m) * float64(time.Millisecond)))
}

func toMillis(d time.Duration) Millis {
	return Millis(float64(d) / float64(time.Millisecond))
}

type (
	Delay    = timers.Delay
	Interval = timers.Interval[Millis]
	Shared   = runtime.Shared[Millis, *Delay, *Interval]
)

// Runtime is an event loop. Tasks spawned before it starts are queued and run
// once it does; tasks spawned after it stops are dropped. Timers only complete
// while the loop is running.
type Runtime struct {
	services.Service

	cfg    Config
	origin time.Time
	logger log.Logger

	mtx    sync.Mutex
	closed bool
	tasks  *queue.Queue
	armed  timers.Schedule[Millis]
	wake   chan struct{}
}

func New(cfg Config, logger log.Logger) *Runtime {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	r := &Runtime{
		cfg:    cfg,
		origin: time.Now(),
		logger: logger,
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
	}

	r.Service = services.NewBasicService(nil, r.loop, nil)
	return r
}

// Borrow returns a use-only handle to r.
func Borrow(r *Runtime) Shared {
	return runtime.Share[Millis, *Delay, *Interval](r)
}

func (r *Runtime) Spawn(task func()) {
	r.mtx.Lock()
	if r.closed {
		r.mtx.Unlock()
		level.Debug(r.logger).Log("msg", "dropping task spawned after event loop stopped")
		return
	}

	r.tasks.Add(task)
	r.mtx.Unlock()

	r.notify()
}

func (r *Runtime) Now() Millis {
	return toMillis(r.since())
}

func (r *Runtime) Elapsed(instant Millis) time.Duration {
	return r.DurationBetween(instant, r.Now())
}

func (r *Runtime) DurationBetween(earlier, later Millis) time.Duration {
	return core.Between(earlier.duration(), later.duration())
}

func (r *Runtime) Delay(d time.Duration) *Delay {
	if d <= 0 {
		return timers.Completed()
	}

	dl := timers.NewDelay()
	e := r.schedule(core.Deadline(r.since(), d), func(Millis) { dl.Fire() })
	dl.SetCancel(func() { r.unschedule(e) })
	return dl
}

func (r *Runtime) Interval(d time.Duration) *Interval {
	if d < minPeriod {
		d = minPeriod
	}

	return timers.NewInterval(r.Now(), func(prev Millis, fire func(Millis)) func() {
		e := r.schedule(core.Deadline(prev.duration(), d), fire)
		return func() { r.unschedule(e) }
	})
}

func (r *Runtime) since() time.Duration {
	return time.Since(r.origin)
}

func (r *Runtime) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) loop(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}

	defer r.close()

	for {
		r.fireDue()
		r.runBatch()

		wait, ok := r.nextWait()
		if ok && wait <= 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
				continue
			}
		}

		if ok {
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-r.wake:
		case <-timer.C:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func (r *Runtime) close() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.closed = true
	if n := r.tasks.Length(); n > 0 {
		level.Debug(r.logger).Log("msg", "event loop stopped with queued tasks", "dropped", n)
	}

	r.tasks = queue.New()
}

// nextWait reports how long the loop may sleep. It returns false when there
// is nothing to wait for other than a wake up.
func (r *Runtime) nextWait() (time.Duration, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.tasks.Length() > 0 {
		return 0, true
	}

	due, ok := r.armed.Next()
	if !ok {
		return 0, false
	}

	return due - r.since(), true
}

func (r *Runtime) fireDue() {
	for {
		r.mtx.Lock()
		now := r.since()
		e := r.armed.PopDue(now)
		r.mtx.Unlock()
		if e == nil {
			return
		}

		e.Fire(toMillis(now))
	}
}

func (r *Runtime) runBatch() {
	for i := 0; i < r.cfg.BatchSize; i++ {
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

func (r *Runtime) schedule(due time.Duration, fire func(Millis)) *timers.Entry[Millis] {
	r.mtx.Lock()
	e := r.armed.Add(due, fire)
	r.mtx.Unlock()

	r.notify()
	return e
}

func (r *Runtime) unschedule(e *timers.Entry[Millis]) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.armed.Remove(e)
}

func (r *Runtime) run(task func()) {
	defer func() {
		if p := recover(); p != nil {
			level.Error(r.logger).Log("msg", "spawned task panicked", "panic", fmt.Sprint(p))
		}
	}()

	task()
}
