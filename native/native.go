// Package native is the multi-threaded runtime: spawned tasks run on a pool of
// worker goroutines and timers are backed by the Go runtime's timers, measured
// against the platform monotonic clock.
package native

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/internal/timers"
	rt "github.com/Healthire/turbulence/runtime"
)

const minPeriod = time.Nanosecond

type Config struct {
	Workers   int
	QueueSize int
}

func (c *Config) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.IntVar(&c.Workers, prefix+"workers", 0, "Worker goroutines running spawned tasks, 0 for one per CPU")
	fs.IntVar(&c.QueueSize, prefix+"queue-size", 1024, "Spawned tasks buffered before each extra task gets its own goroutine")
}

// Instant is a reading of the monotonic clock used by a native Runtime.
type Instant struct {
	mono time.Duration
}

type (
	Delay    = timers.Delay
	Interval = timers.Interval[Instant]
	Shared   = rt.Shared[Instant, *Delay, *Interval]
)

// Runtime runs spawned tasks on a worker pool. It is a dskit service: tasks
// spawned before it starts are held until it does, tasks spawned after it
// stops are dropped, and stopping it waits for every task already accepted to
// finish. Timers work regardless of state.
type Runtime struct {
	services.Service

	cfg     Config
	clock   core.Clock
	logger  log.Logger
	metrics *Metrics

	mtx     sync.RWMutex
	state   state
	backlog *queue.Queue
	tasks   chan func()
	wg      sync.WaitGroup
}

type state int

const (
	pending state = iota
	running
	stopped
)

func New(cfg Config, logger log.Logger) *Runtime {
	return NewWithClock(cfg, core.DefaultClock{}, logger)
}

func NewWithClock(cfg Config, clock core.Clock, logger log.Logger) *Runtime {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	r := &Runtime{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: NewMetrics(),
		backlog: queue.New(),
	}

	r.Service = services.NewIdleService(r.starting, r.stopping)
	return r
}

// Borrow returns a use-only handle to r.
func Borrow(r *Runtime) Shared {
	return rt.Share[Instant, *Delay, *Interval](r)
}

func (r *Runtime) Metrics() *Metrics {
	return r.metrics
}

func (r *Runtime) starting(_ context.Context) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.tasks = make(chan func(), r.cfg.QueueSize)
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}

	held := r.backlog.Length()
	for r.backlog.Length() > 0 {
		r.dispatch(r.backlog.Remove().(func()))
	}

	r.state = running
	level.Debug(r.logger).Log("msg", "started native runtime", "workers", r.cfg.Workers, "queue_size", r.cfg.QueueSize, "held_tasks", held)
	return nil
}

func (r *Runtime) stopping(_ error) error {
	r.mtx.Lock()
	r.state = stopped
	close(r.tasks)
	r.mtx.Unlock()

	r.wg.Wait()
	level.Debug(r.logger).Log("msg", "stopped native runtime", "completed", r.metrics.Completed.Load())
	return nil
}

func (r *Runtime) work() {
	defer r.wg.Done()

	for task := range r.tasks {
		r.run(task)
	}
}

func (r *Runtime) run(task func()) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.Panicked.Add(1)
			level.Error(r.logger).Log("msg", "spawned task panicked", "panic", fmt.Sprint(p))
			return
		}

		r.metrics.Completed.Add(1)
	}()

	task()
}

func (r *Runtime) Spawn(task func()) {
	r.mtx.RLock()
	if r.state == running {
		r.metrics.Spawned.Add(1)
		r.dispatch(task)
		r.mtx.RUnlock()
		return
	}
	r.mtx.RUnlock()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	switch r.state {
	case running:
		r.metrics.Spawned.Add(1)
		r.dispatch(task)
	case pending:
		r.metrics.Spawned.Add(1)
		r.backlog.Add(task)
	default:
		r.metrics.Dropped.Add(1)
		level.Debug(r.logger).Log("msg", "dropping task spawned after runtime stopped", "state", r.State())
	}
}

// dispatch hands task to a worker, or to a goroutine of its own when the
// queue is full. r.mtx must be held.
func (r *Runtime) dispatch(task func()) {
	select {
	case r.tasks <- task:
	default:
		r.metrics.Overflowed.Add(1)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.run(task)
		}()
	}
}

func (r *Runtime) Now() Instant {
	return Instant{mono: r.clock.Monotonic()}
}

func (r *Runtime) Elapsed(instant Instant) time.Duration {
	return r.DurationBetween(instant, r.Now())
}

func (r *Runtime) DurationBetween(earlier, later Instant) time.Duration {
	return core.Between(earlier.mono, later.mono)
}

func (r *Runtime) Delay(d time.Duration) *Delay {
	r.metrics.Delays.Add(1)
	if d <= 0 {
		return timers.Completed()
	}

	due := core.Deadline(r.clock.Monotonic(), d)
	dl := timers.NewDelay()
	t := time.AfterFunc(d, func() {
		r.waitUntil(due)
		dl.Fire()
	})

	dl.SetCancel(func() { t.Stop() })
	return dl
}

func (r *Runtime) Interval(d time.Duration) *Interval {
	r.metrics.Intervals.Add(1)
	if d < minPeriod {
		d = minPeriod
	}

	return timers.NewInterval(r.Now(), func(prev Instant, fire func(Instant)) func() {
		due := core.Deadline(prev.mono, d)
		t := time.AfterFunc(due-r.clock.Monotonic(), func() {
			fire(Instant{mono: r.waitUntil(due)})
		})

		return func() { t.Stop() }
	})
}

// waitUntil covers the gap, if any, between the Go timer firing and the clock
// this runtime reports instants from reaching due. It returns the reading.
func (r *Runtime) waitUntil(due time.Duration) time.Duration {
	for {
		now := r.clock.Monotonic()
		if now >= due {
			return now
		}

		time.Sleep(due - now)
	}
}
