package app

import (
	"context"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/runtime"
)

type StatsConfig struct {
	Period time.Duration
}

func (c *StatsConfig) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.DurationVar(&c.Period, prefix+"period", 10*time.Second, "Time between refreshes of process statistics")
}

// RuntimeSnapshot is a snapshot of the state maintained by RuntimeContext
type RuntimeSnapshot struct {
	Uptime    time.Duration
	Refreshes uint64
	Pid       int
	UserCPU   float64
	SystemCPU float64
}

// Reporter contributes key/value pairs to each process stats log line.
type Reporter interface {
	Report() []any
}

// RuntimeContext periodically refreshes process information, paced by an
// interval from the runtime being probed rather than a ticker of its own.
type RuntimeContext[I comparable, D runtime.Delay, V runtime.Interval[I]] struct {
	services.Service

	cfg       StatsConfig
	rt        runtime.Shared[I, D, V]
	reporters []Reporter
	logger    log.Logger

	startup   I
	uptime    time.Duration
	refreshes uint64
	pid       int
	userCPU   float64
	systemCPU float64
	mtx       sync.RWMutex
}

func NewRuntimeContext[I comparable, D runtime.Delay, V runtime.Interval[I]](cfg StatsConfig, rt runtime.Shared[I, D, V], logger log.Logger, reporters ...Reporter) *RuntimeContext[I, D, V] {
	r := &RuntimeContext[I, D, V]{
		cfg:       cfg,
		rt:        rt,
		reporters: reporters,
		logger:    log.With(logger, "component", "stats"),
		startup:   rt.Now(),
		pid:       os.Getpid(),
	}

	r.Service = services.NewBasicService(nil, r.loop, nil)
	return r
}

func (r *RuntimeContext[I, D, V]) loop(ctx context.Context) error {
	iv := r.rt.Interval(r.cfg.Period)
	defer iv.Stop()

	for t := range runtime.Ticks[I](ctx, iv) {
		userCPU, systemCPU, err := getUserSystemCPU()
		if err != nil {
			return err
		}

		r.mtx.Lock()
		r.uptime = r.rt.DurationBetween(r.startup, t)
		r.refreshes++
		r.userCPU = userCPU
		r.systemCPU = systemCPU
		r.mtx.Unlock()

		kvs := []any{"msg", "refreshed process stats", "uptime", r.rt.DurationBetween(r.startup, t), "rusage_user", userCPU, "rusage_system", systemCPU}
		for _, rep := range r.reporters {
			kvs = append(kvs, rep.Report()...)
		}

		level.Debug(r.logger).Log(kvs...)
	}

	return nil
}

func (r *RuntimeContext[I, D, V]) Read() RuntimeSnapshot {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return RuntimeSnapshot{
		Uptime:    r.uptime,
		Refreshes: r.refreshes,
		Pid:       r.pid,
		UserCPU:   r.userCPU,
		SystemCPU: r.systemCPU,
	}
}
