package mac

import "github.com/ystepanoff/tsch/queue"

// dupCache is the received-sequence-number cache for duplicate
// suppression (spec.md §3): a bounded FIFO of (sender, seqno) pairs.
// Eviction shifts the backing array down on every insert past capacity —
// O(cache size) per received packet, kept intentionally rather than
// replaced with a ring index, per spec.md §9's open question (see
// DESIGN.md: this doesn't change semantics, so there is no reason to
// pay the complexity of a ring here too).
type dupCache struct {
	entries []dupEntry
	cap     int
}

type dupEntry struct {
	addr queue.Addr
	seq  uint8
}

func newDupCache(capacity int) *dupCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &dupCache{entries: make([]dupEntry, 0, capacity), cap: capacity}
}

// Seen reports whether (addr, seq) was already recorded.
func (c *dupCache) Seen(addr queue.Addr, seq uint8) bool {
	for _, e := range c.entries {
		if e.addr == addr && e.seq == seq {
			return true
		}
	}
	return false
}

// Record inserts (addr, seq), shifting out the oldest entry if full.
func (c *dupCache) Record(addr queue.Addr, seq uint8) {
	if len(c.entries) >= c.cap {
		copy(c.entries, c.entries[1:])
		c.entries = c.entries[:len(c.entries)-1]
	}
	c.entries = append(c.entries, dupEntry{addr: addr, seq: seq})
}
