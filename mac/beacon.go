package mac

import "github.com/ystepanoff/tsch/queue"

// BeaconStep enqueues a new EB if none is currently pending (spec.md
// §4.6). Callers invoke it after waiting NextEBPeriodMs's previously
// returned delay. Returns true iff an EB was actually enqueued.
func (c *Context) BeaconStep() bool {
	if !c.associated.Load() {
		return false
	}
	eb := c.neighbours.Get(c.neighbours.EBAddr())
	if eb == nil || !eb.QueueEmpty() {
		return false
	}
	pkt := queue.NewPacket(c.neighbours.EBAddr(), nil, nil, nil)
	return c.neighbours.Enqueue(c.neighbours.EBAddr(), pkt) == nil
}

// NextEBPeriodMs returns a randomised EB period in [0.9*period, period),
// clamped to the configured minimum during the first minute after
// association (spec.md §4.6).
func (c *Context) NextEBPeriodMs(secondsSinceAssociation int64) int64 {
	period := c.cfg.EBMaxPeriodMs
	if secondsSinceAssociation < 60 {
		period = c.cfg.EBMinPeriodMs
	}
	return jittered(c.rng, period)
}

// KeepaliveStep sends an empty unicast to the current time source, if
// one is known (spec.md §4.6).
func (c *Context) KeepaliveStep() bool {
	ts := c.neighbours.GetTimeSource()
	if ts == nil {
		return false
	}
	pkt := queue.NewPacket(ts.Addr, nil, nil, nil)
	return c.neighbours.Enqueue(ts.Addr, pkt) == nil
}

// NextKeepalivePeriodMs returns a jittered keepalive interval in
// [0.9*T, T) (spec.md §4.6), rescheduled at every successful sync event
// by the caller.
func (c *Context) NextKeepalivePeriodMs() int64 {
	return jittered(c.rng, c.cfg.KeepalivePeriodMs)
}

func jittered(rng interface{ Int63n(int64) int64 }, period int64) int64 {
	lower := period * 9 / 10
	span := period - lower
	if span <= 0 {
		return lower
	}
	return lower + rng.Int63n(span)
}
