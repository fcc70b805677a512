package timers

import (
	"container/heap"
	"time"
)

// Entry is a timer armed on a Schedule.
type Entry[I any] struct {
	due   time.Duration
	seq   uint64
	fire  func(I)
	index int
}

func (e *Entry[I]) Due() time.Duration {
	return e.due
}

// Fire runs the callback the entry was armed with.
func (e *Entry[I]) Fire(at I) {
	e.fire(at)
}

type entryHeap[I any] []*Entry[I]

func (h entryHeap[I]) Len() int { return len(h) }

func (h entryHeap[I]) Less(i, j int) bool {
	if h[i].due == h[j].due {
		return h[i].seq < h[j].seq
	}
	return h[i].due < h[j].due
}

func (h entryHeap[I]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[I]) Push(x any) {
	e := x.(*Entry[I])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[I]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Schedule orders armed timers by due time, ties going to the one armed
// first. It is not safe for concurrent use; bindings guard it with their own
// lock and call Fire on popped entries after releasing it.
type Schedule[I any] struct {
	seq     uint64
	entries entryHeap[I]
}

func (s *Schedule[I]) Len() int {
	return len(s.entries)
}

// Add arms fire at due.
func (s *Schedule[I]) Add(due time.Duration, fire func(I)) *Entry[I] {
	s.seq++
	e := &Entry[I]{due: due, seq: s.seq, fire: fire}
	heap.Push(&s.entries, e)
	return e
}

// Remove disarms e. Entries already popped or removed are ignored.
func (s *Schedule[I]) Remove(e *Entry[I]) {
	if e.index >= 0 && e.index < len(s.entries) && s.entries[e.index] == e {
		heap.Remove(&s.entries, e.index)
	}
}

// Next returns the due time of the earliest entry.
func (s *Schedule[I]) Next() (time.Duration, bool) {
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[0].due, true
}

// PopDue removes and returns the earliest entry if it is due at or before
// limit, or nil.
func (s *Schedule[I]) PopDue(limit time.Duration) *Entry[I] {
	if len(s.entries) == 0 || s.entries[0].due > limit {
		return nil
	}
	return heap.Pop(&s.entries).(*Entry[I])
}
