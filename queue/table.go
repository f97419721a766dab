package queue

import (
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Table is the neighbour table: the broadcast and EB pseudo-neighbours plus
// every peer this node currently tracks (spec.md §3, §4.2).
//
// Structural mutation (Add/GC/UpdateTimeSource) must only be called
// while the caller holds the global lock (package mac); read-only
// operations (Get, GetTimeSource, GetUnicastPacketForAny) are safe to call
// at any time, including from the slot engine, because the neighbour slice
// itself is published through an atomic pointer and never mutated in
// place — copy-on-write under mu, lock-free read via snapshot.Load().
type Table struct {
	mu       sync.Mutex // guards structural mutation only
	snapshot atomic.Pointer[[]*Neighbour]

	queueCapacity      int
	minBackoffExponent int
	maxBackoffExponent int
	maxNeighbours      int

	// lockHeld, when set, lets Enqueue consult the MAC's global lock before
	// mutating the table — mirroring tsch_queue_add_packet's
	// !tsch_is_locked() gate (spec.md §4.2). nil (the default for tests
	// that exercise this package directly) means "never locked".
	lockHeld func() bool

	log *zap.Logger
}

// SetLockHeld wires a lock-query callback into the table, used by
// mac.Context to make Enqueue fail fast with ErrLockHeld instead of
// racing structural mutation against the slot engine.
func (t *Table) SetLockHeld(fn func() bool) { t.lockHeld = fn }

// NewTable creates a table pre-seeded with the broadcast and EB virtual
// neighbours, which always exist (spec.md §3 invariant).
func NewTable(maxNeighbours, queueCapacity, minBackoffExponent, maxBackoffExponent int, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Table{
		queueCapacity:      queueCapacity,
		minBackoffExponent: minBackoffExponent,
		maxBackoffExponent: maxBackoffExponent,
		maxNeighbours:      maxNeighbours,
		log:                log,
	}

	broadcast := newNeighbour(Broadcast, queueCapacity, minBackoffExponent)
	broadcast.IsBroadcast = true
	eb := newNeighbour(ebAddr, queueCapacity, minBackoffExponent)

	initial := []*Neighbour{broadcast, eb}
	t.snapshot.Store(&initial)
	return t
}

func (t *Table) load() []*Neighbour {
	p := t.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// BroadcastAddr/EBAddr expose the reserved pseudo-addresses so callers can
// build links and packets targeting them.
func (t *Table) BroadcastAddr() Addr { return Broadcast }
func (t *Table) EBAddr() Addr        { return ebAddr }

// Get returns the neighbour with the given address, or nil. Lock-free.
func (t *Table) Get(addr Addr) *Neighbour {
	for _, n := range t.load() {
		if n.Addr == addr {
			return n
		}
	}
	return nil
}

// GetTimeSource returns the single neighbour flagged as time source, or
// nil if none has been chosen yet. Lock-free.
func (t *Table) GetTimeSource() *Neighbour {
	n, _ := lo.Find(t.load(), func(n *Neighbour) bool { return n.IsTimeSource })
	if n == nil {
		return nil
	}
	return n
}

// Add returns the existing neighbour for addr, or allocates and links in a
// new one. Idempotent. Must be called with the global lock held.
func (t *Table) Add(addr Addr) (*Neighbour, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.load()
	for _, n := range cur {
		if n.Addr == addr {
			return n, nil
		}
	}
	if len(cur) >= t.maxNeighbours {
		return nil, ErrNeighbourTableFull
	}

	n := newNeighbour(addr, t.queueCapacity, t.minBackoffExponent)
	next := make([]*Neighbour, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, n)
	t.snapshot.Store(&next)
	return n, nil
}

// UpdateTimeSource clears the old time-source flag and sets the new one.
// It reports whether the time source actually changed. Must be called
// with the global lock held.
func (t *Table) UpdateTimeSource(addr Addr) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.load()
	var target *Neighbour
	for _, n := range cur {
		if n.Addr == addr {
			target = n
		}
	}
	if target == nil {
		return false, ErrNotFound
	}
	if target.IsTimeSource {
		return false, nil
	}
	for _, n := range cur {
		n.IsTimeSource = n == target
	}
	t.log.Debug("time source updated", zap.Stringer("addr", addr))
	return true, nil
}

// Enqueue allocates (or reuses) the neighbour for dest and enqueues the
// packet on its ring, per spec.md §4.2 add_packet: fails with ErrLockHeld
// if the global lock is currently held, with ErrNeighbourTableFull if dest
// cannot be allocated, or with ErrQueueFull if its ring is at capacity.
func (t *Table) Enqueue(dest Addr, p *Packet) error {
	if t.lockHeld != nil && t.lockHeld() {
		return ErrLockHeld
	}
	n, err := t.Add(dest)
	if err != nil {
		return err
	}
	if !n.ring.enqueue(p) {
		return ErrQueueFull
	}
	return nil
}

// GetUnicastPacketForAny returns the first non-broadcast neighbour with
// zero TX links that has a ready packet (spec.md §4.2
// get_unicast_packet_for_any), used when a broadcast link's own queue is
// empty.
func (t *Table) GetUnicastPacketForAny(sharedLink bool) (*Neighbour, *Packet) {
	for _, n := range t.load() {
		if n.IsBroadcast || n.TxLinksCount != 0 {
			continue
		}
		if p := n.PeekPacket(sharedLink); p != nil {
			return n, p
		}
	}
	return nil, nil
}

// DecrementSharedBackoffs is called once per TX-SHARED slot (spec.md §4.4
// step 5): the backoff window of every neighbour whose address matches
// the slot's target is decremented. For a broadcast target, every
// zero-tx-link neighbour matches; for a dedicated destination, only that
// neighbour matches.
func (t *Table) DecrementSharedBackoffs(target Addr) {
	for _, n := range t.load() {
		if target.IsBroadcast() {
			if n.TxLinksCount == 0 {
				n.DecrementBackoff()
			}
			continue
		}
		if n.Addr == target {
			n.DecrementBackoff()
		}
	}
}

// GC removes every neighbour eligible for garbage collection (spec.md §3,
// §4.7). Must be called with the global lock held.
func (t *Table) GC() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.load()
	kept := lo.Filter(cur, func(n *Neighbour, _ int) bool { return !n.eligibleForGC() })
	removed := len(cur) - len(kept)
	if removed > 0 {
		t.snapshot.Store(&kept)
		t.log.Debug("garbage collected idle neighbours", zap.Int("count", removed))
	}
	return removed
}

// All returns a snapshot slice of every currently-tracked neighbour.
func (t *Table) All() []*Neighbour {
	cur := t.load()
	out := make([]*Neighbour, len(cur))
	copy(out, cur)
	return out
}
