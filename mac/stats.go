package mac

import "sync/atomic"

// Stats are free-running observability counters, incremented at the
// points spec.md §7 names a drop or a deadline miss. They are the only
// thing this package exposes for the error kinds that don't propagate
// through a callback (DEADLINE_MISS, INPUT_QUEUE_FULL, DESYNC).
type Stats struct {
	InputDropped   atomic.Uint64
	DequeueDropped atomic.Uint64
	DeadlineMisses atomic.Uint64
	Desyncs        atomic.Uint64
}

// Stats returns this context's live counters.
func (c *Context) Stats() *Stats { return &c.stats }
