package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/runtime"
	"github.com/Healthire/turbulence/sim"
)

var _ runtime.Runtime[sim.Tick, *sim.Delay, *sim.Interval] = (*sim.Runtime)(nil)
var _ runtime.Runtime[sim.Tick, *sim.Delay, *sim.Interval] = sim.Shared{}

func mustPanicWithOrder(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		p := recover()
		if p == nil {
			t.Fatal("expected contract violation panic, got none")
		}

		err, ok := p.(error)
		if !ok || !errors.Is(err, core.ErrInstantOrder) {
			t.Fatalf("expected panic wrapping ErrInstantOrder, got %v", p)
		}
	}()

	fn()
}

func TestDurationBetween(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	a := rt.Now()
	rt.Advance(42 * time.Millisecond)
	b := rt.Now()

	if d := rt.DurationBetween(a, a); d != 0 {
		t.Errorf("expected zero duration between equal instants, got %s", d)
	}

	if d := rt.DurationBetween(a, b); d != 42*time.Millisecond {
		t.Errorf("expected 42ms, got %s", d)
	}

	mustPanicWithOrder(t, func() {
		_ = rt.DurationBetween(b, a)
	})
}

func TestElapsed(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	start := rt.Now()

	if d := rt.Elapsed(start); d != 0 {
		t.Errorf("expected zero elapsed immediately after Now, got %s", d)
	}

	rt.Advance(time.Second)
	if d := rt.Elapsed(start); d != time.Second {
		t.Errorf("expected 1s elapsed, got %s", d)
	}
}

func TestSharedForwardsEveryOperation(t *testing.T) {
	direct := sim.New(log.NewNopLogger())
	borrowed := sim.New(log.NewNopLogger())
	shared := sim.Borrow(borrowed)

	direct.Advance(3 * time.Second)
	borrowed.Advance(3 * time.Second)

	if direct.Now() != shared.Now() {
		t.Fatalf("Now differs: direct %s shared %s", direct.Now(), shared.Now())
	}

	start := shared.Now()
	if shared.Now() != borrowed.Now() {
		t.Fatalf("shared Now %s does not match underlying %s", shared.Now(), borrowed.Now())
	}

	var ranDirect, ranShared bool
	direct.Spawn(func() { ranDirect = true })
	shared.Spawn(func() { ranShared = true })

	dDirect := direct.Delay(5 * time.Millisecond)
	dShared := shared.Delay(5 * time.Millisecond)
	ivDirect := direct.Interval(2 * time.Millisecond)
	ivShared := shared.Interval(2 * time.Millisecond)

	direct.Advance(5 * time.Millisecond)
	borrowed.Advance(5 * time.Millisecond)

	if !ranDirect || !ranShared {
		t.Errorf("expected both spawned tasks to run, direct=%v shared=%v", ranDirect, ranShared)
	}

	for name, dl := range map[string]*sim.Delay{"direct": dDirect, "shared": dShared} {
		select {
		case <-dl.Done():
		default:
			t.Errorf("%s delay not completed after its duration", name)
		}
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		a, err := ivDirect.Next(ctx)
		if err != nil {
			t.Fatalf("direct interval: %s", err)
		}

		b, err := ivShared.Next(ctx)
		if err != nil {
			t.Fatalf("shared interval: %s", err)
		}

		if a != b {
			t.Errorf("tick %d differs: direct %s shared %s", i, a, b)
		}

		direct.Advance(2 * time.Millisecond)
		borrowed.Advance(2 * time.Millisecond)
	}

	if shared.Elapsed(start) != borrowed.Elapsed(start) {
		t.Errorf("Elapsed differs through shared handle")
	}

	if got := shared.DurationBetween(start, shared.Now()); got != 11*time.Millisecond {
		t.Errorf("expected 11ms through shared handle, got %s", got)
	}

	mustPanicWithOrder(t, func() {
		_ = shared.DurationBetween(shared.Now(), start)
	})
}

func TestSharedIsCopyable(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	a := sim.Borrow(rt)
	b := a

	var count int
	a.Spawn(func() { count++ })
	b.Spawn(func() { count++ })
	rt.RunUntilIdle()

	if count != 2 {
		t.Errorf("expected both copies to reach the same runtime, ran %d tasks", count)
	}
}

func TestTicks(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	iv := rt.Interval(10 * time.Millisecond)
	defer iv.Stop()

	rt.Advance(10 * time.Millisecond)

	var seen []sim.Tick
	for tick := range runtime.Ticks[sim.Tick](context.Background(), iv) {
		seen = append(seen, tick)
		if len(seen) == 3 {
			break
		}
		rt.Advance(10 * time.Millisecond)
	}

	want := []sim.Tick{
		sim.Tick(10 * time.Millisecond),
		sim.Tick(20 * time.Millisecond),
		sim.Tick(30 * time.Millisecond),
	}

	if len(seen) != len(want) {
		t.Fatalf("expected %d ticks, got %d", len(want), len(seen))
	}

	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("tick %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestTicksEndsWhenStopped(t *testing.T) {
	rt := sim.New(log.NewNopLogger())
	iv := rt.Interval(time.Millisecond)
	iv.Stop()

	for range runtime.Ticks[sim.Tick](context.Background(), iv) {
		t.Fatal("expected no ticks from a stopped interval")
	}
}
