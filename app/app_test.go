package app

import (
	"context"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/native"
	"github.com/Healthire/turbulence/sim"
)

const waitLimit = 5 * time.Second

func defaultConfig(t *testing.T, args ...string) Config {
	t.Helper()

	cfg := Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("unable to parse flags: %s", err)
	}

	return cfg
}

// drive advances the simulated clock in steps until cond holds.
func drive(t *testing.T, rt *sim.Runtime, step time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitLimit)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}

		rt.Advance(step)
		time.Sleep(time.Millisecond)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := defaultConfig(t)

	if cfg.Runtime != RuntimeNative {
		t.Errorf("expected default runtime %q, got %q", RuntimeNative, cfg.Runtime)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %s", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	for name, args := range map[string][]string{
		"unknown runtime": {"-runtime", "tokio"},
		"zero probe":      {"-probe.period", "0s"},
		"negative stats":  {"-stats.period", "-1s"},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig(t, args...)
			if err := cfg.Validate(); !errors.Is(err, core.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestProbe_Sim(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	cfg := ProbeConfig{Period: time.Second, Delay: 100 * time.Millisecond, ReportEvery: 2}
	p := NewProbe(cfg, sim.Borrow(rt), log.NewNopLogger())

	ctx := context.Background()
	if err := services.StartAndAwaitRunning(ctx, p); err != nil {
		t.Fatal(err)
	}

	drive(t, rt, 50*time.Millisecond, func() bool { return p.Read().Samples >= 3 })

	if err := services.StopAndAwaitTerminated(ctx, p); err != nil {
		t.Fatal(err)
	}

	s := p.Read()
	if s.Early != 0 {
		t.Errorf("expected no delay to complete early, got %d", s.Early)
	}

	if s.MaxLateness < 0 || s.MeanLateness > s.MaxLateness {
		t.Errorf("inconsistent lateness summary: %+v", s)
	}
}

func TestRuntimeContext_Sim(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	r := NewRuntimeContext(StatsConfig{Period: time.Second}, sim.Borrow(rt), log.NewNopLogger())

	ctx := context.Background()
	if err := services.StartAndAwaitRunning(ctx, r); err != nil {
		t.Fatal(err)
	}

	drive(t, rt, time.Second, func() bool { return r.Read().Refreshes >= 2 })

	if err := services.StopAndAwaitTerminated(ctx, r); err != nil {
		t.Fatal(err)
	}

	s := r.Read()
	if s.Uptime < 2*time.Second {
		t.Errorf("expected uptime of at least 2s after two refreshes, got %s", s.Uptime)
	}

	if s.Pid == 0 {
		t.Error("expected pid to be recorded")
	}
}

func TestRuntimeContext_LogsRuntimeMetrics(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	metrics := native.NewMetrics()
	metrics.Spawned.Add(3)

	var buf strings.Builder
	logger := log.NewLogfmtLogger(log.NewSyncWriter(&buf))
	r := NewRuntimeContext(StatsConfig{Period: time.Second}, sim.Borrow(rt), logger, metrics)

	ctx := context.Background()
	if err := services.StartAndAwaitRunning(ctx, r); err != nil {
		t.Fatal(err)
	}

	drive(t, rt, time.Second, func() bool { return r.Read().Refreshes >= 1 })

	if err := services.StopAndAwaitTerminated(ctx, r); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"component=stats", "tasks_spawned=3", "delays=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in stats log %q", want, out)
		}
	}
}

func TestApplication_UnknownRuntime(t *testing.T) {
	cfg := defaultConfig(t, "-runtime", "wasm")
	if _, err := ApplicationFromConfig(cfg, log.NewNopLogger()); !errors.Is(err, core.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestApplication_Run(t *testing.T) {
	for _, name := range []string{RuntimeNative, RuntimeEventLoop} {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig(t,
				"-runtime", name,
				"-probe.period", "5ms",
				"-probe.delay", "1ms",
				"-stats.period", "5ms",
			)

			a, err := ApplicationFromConfig(cfg, log.NewNopLogger())
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			if err := a.Run(ctx); err != nil {
				t.Errorf("unexpected error running application: %s", err)
			}

			if state := a.runtime.State(); state != services.Terminated {
				t.Errorf("expected runtime to be terminated, got %s", state)
			}
		})
	}
}
