package app

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/runtime"
)

type ProbeConfig struct {
	Period      time.Duration
	Delay       time.Duration
	ReportEvery int
}

func (c *ProbeConfig) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.DurationVar(&c.Period, prefix+"period", time.Second, "Time between probes of the runtime")
	fs.DurationVar(&c.Delay, prefix+"delay", 10*time.Millisecond, "Duration of the delay awaited by each probe")
	fs.IntVar(&c.ReportEvery, prefix+"report-every", 10, "Number of probes between summary log lines")
}

// ProbeSnapshot summarizes the probes run so far.
type ProbeSnapshot struct {
	Samples      uint64
	Early        uint64
	MaxLateness  time.Duration
	MeanLateness time.Duration
	MaxSpawn     time.Duration
	MeanSpawn    time.Duration
}

// Probe measures how a runtime keeps its timing promises: how long a spawned
// task waits before running, and how late a Delay completes past its duration.
// It only borrows the runtime.
type Probe[I comparable, D runtime.Delay, V runtime.Interval[I]] struct {
	services.Service

	cfg    ProbeConfig
	rt     runtime.Shared[I, D, V]
	logger log.Logger

	mtx         sync.Mutex
	samples     uint64
	early       uint64
	maxLateness time.Duration
	sumLateness time.Duration
	maxSpawn    time.Duration
	sumSpawn    time.Duration
}

func NewProbe[I comparable, D runtime.Delay, V runtime.Interval[I]](cfg ProbeConfig, rt runtime.Shared[I, D, V], logger log.Logger) *Probe[I, D, V] {
	p := &Probe[I, D, V]{
		cfg:    cfg,
		rt:     rt,
		logger: log.With(logger, "component", "probe"),
	}

	p.Service = services.NewBasicService(nil, p.loop, nil)
	return p
}

func (p *Probe[I, D, V]) loop(ctx context.Context) error {
	iv := p.rt.Interval(p.cfg.Period)
	defer iv.Stop()

	for range runtime.Ticks[I](ctx, iv) {
		spawn, ok := p.measureSpawn(ctx)
		if !ok {
			return nil
		}

		lateness, ok := p.measureDelay(ctx)
		if !ok {
			return nil
		}

		n := p.record(spawn, lateness)
		if p.cfg.ReportEvery > 0 && n%uint64(p.cfg.ReportEvery) == 0 {
			s := p.Read()
			level.Info(p.logger).Log(
				"msg", "probe summary",
				"samples", s.Samples,
				"early", s.Early,
				"max_lateness", s.MaxLateness,
				"mean_lateness", s.MeanLateness,
				"max_spawn", s.MaxSpawn,
				"mean_spawn", s.MeanSpawn,
			)
		}
	}

	return nil
}

// measureSpawn returns the time between spawning a task and it starting. The
// task never blocks so it is safe on single threaded runtimes.
func (p *Probe[I, D, V]) measureSpawn(ctx context.Context) (time.Duration, bool) {
	started := make(chan time.Duration, 1)
	at := p.rt.Now()
	p.rt.Spawn(func() {
		started <- p.rt.Elapsed(at)
	})

	select {
	case d := <-started:
		return d, true
	case <-ctx.Done():
		return 0, false
	}
}

// measureDelay returns how far past its duration a Delay completed. A negative
// value means the runtime completed the delay early.
func (p *Probe[I, D, V]) measureDelay(ctx context.Context) (time.Duration, bool) {
	start := p.rt.Now()
	dl := p.rt.Delay(p.cfg.Delay)
	if err := dl.Wait(ctx); err != nil {
		dl.Stop()
		return 0, false
	}

	return p.rt.Elapsed(start) - p.cfg.Delay, true
}

func (p *Probe[I, D, V]) record(spawn, lateness time.Duration) uint64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.samples++
	if lateness < 0 {
		p.early++
		level.Error(p.logger).Log("msg", "delay completed early", "by", -lateness)
	} else {
		p.sumLateness += lateness
		if lateness > p.maxLateness {
			p.maxLateness = lateness
		}
	}

	p.sumSpawn += spawn
	if spawn > p.maxSpawn {
		p.maxSpawn = spawn
	}

	return p.samples
}

func (p *Probe[I, D, V]) Read() ProbeSnapshot {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	s := ProbeSnapshot{
		Samples:     p.samples,
		Early:       p.early,
		MaxLateness: p.maxLateness,
		MaxSpawn:    p.maxSpawn,
	}

	if onTime := p.samples - p.early; onTime > 0 {
		s.MeanLateness = p.sumLateness / time.Duration(onTime)
	}

	if p.samples > 0 {
		s.MeanSpawn = p.sumSpawn / time.Duration(p.samples)
	}

	return s
}
