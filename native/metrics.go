package native

import "sync/atomic"

// Metrics counts work passing through a native Runtime.
type Metrics struct {
	Spawned    atomic.Uint64
	Completed  atomic.Uint64
	Panicked   atomic.Uint64
	Dropped    atomic.Uint64
	Overflowed atomic.Uint64
	Delays     atomic.Uint64
	Intervals  atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Report returns the counters as logfmt key/value pairs.
func (m *Metrics) Report() []any {
	return []any{
		"tasks_spawned", m.Spawned.Load(),
		"tasks_completed", m.Completed.Load(),
		"tasks_panicked", m.Panicked.Load(),
		"tasks_dropped", m.Dropped.Load(),
		"tasks_overflowed", m.Overflowed.Load(),
		"delays", m.Delays.Load(),
		"intervals", m.Intervals.Load(),
	}
}
