package timers

import (
	"math"
	"testing"
	"time"
)

func TestSchedule_PopDueOrder(t *testing.T) {
	s := &Schedule[string]{}

	var order []string
	record := func(at string) { order = append(order, at) }

	s.Add(30*time.Millisecond, record)
	s.Add(10*time.Millisecond, record)
	s.Add(20*time.Millisecond, record)
	s.Add(20*time.Millisecond, record)

	names := []string{"a", "b1", "b2", "c"}
	for i := 0; ; i++ {
		e := s.PopDue(time.Second)
		if e == nil {
			break
		}
		e.Fire(names[i])
	}

	if len(order) != len(names) {
		t.Fatalf("expected %d entries to fire, got %v", len(names), order)
	}

	for i, name := range names {
		if order[i] != name {
			t.Fatalf("expected %v, got %v", names, order)
		}
	}
}

func TestSchedule_TiesKeepArmingOrder(t *testing.T) {
	s := &Schedule[int]{}
	first := s.Add(time.Second, nil)
	second := s.Add(time.Second, nil)

	if e := s.PopDue(time.Second); e != first {
		t.Error("expected entry armed first to pop first")
	}

	if e := s.PopDue(time.Second); e != second {
		t.Error("expected entry armed second to pop second")
	}
}

func TestSchedule_PopDueLimit(t *testing.T) {
	s := &Schedule[int]{}
	s.Add(time.Second, nil)

	if e := s.PopDue(time.Second - time.Nanosecond); e != nil {
		t.Error("expected nothing due before the earliest entry")
	}

	if next, ok := s.Next(); !ok || next != time.Second {
		t.Errorf("expected next due at 1s, got %s (ok=%v)", next, ok)
	}

	if e := s.PopDue(time.Second); e == nil || e.Due() != time.Second {
		t.Error("expected entry to be due at its own due time")
	}

	if _, ok := s.Next(); ok {
		t.Error("expected empty schedule after popping its only entry")
	}
}

func TestSchedule_Remove(t *testing.T) {
	s := &Schedule[int]{}
	a := s.Add(time.Second, nil)
	b := s.Add(2*time.Second, nil)
	c := s.Add(3*time.Second, nil)

	s.Remove(b)
	s.Remove(b)
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries after removal, got %d", s.Len())
	}

	if e := s.PopDue(time.Minute); e != a {
		t.Error("expected first entry")
	}

	s.Remove(a)
	if e := s.PopDue(time.Minute); e != c {
		t.Error("expected last entry after removing the middle one")
	}
}

func TestSchedule_SaturatedEntryNeverDueEarly(t *testing.T) {
	s := &Schedule[int]{}
	s.Add(math.MaxInt64, nil)

	if e := s.PopDue(math.MaxInt64 - 1); e != nil {
		t.Error("expected entry at the end of time not to be due before it")
	}
}
