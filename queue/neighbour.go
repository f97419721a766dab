package queue

// Neighbour is a link-layer peer this node exchanges TSCH traffic with
// (spec.md §3). The broadcast and EB pseudo-neighbours always exist; every
// other neighbour is created on demand by Table.Add and garbage-collected
// by Table.GC once idle.
type Neighbour struct {
	Addr Addr

	IsBroadcast  bool
	IsTimeSource bool

	TxLinksCount         int
	DedicatedTxLinksCount int

	ring    *ring
	backoff backoff

	// etx is an exponentially-weighted-moving-average transmission-count
	// estimate, supplementing spec.md with the original's RPL objective
	// function signal (rpl-of-etx-exp.c) without this package making any
	// routing decision itself — see SPEC_FULL.md SUPPLEMENTED FEATURES.
	etx     float64
	etxSeen bool
}

const etxSmoothing = 0.9 // matches rpl-of-etx-exp.c's RPL_DAG_MC_ETX_DIVISOR-scaled EWMA weight, expressed as a plain float here

func newNeighbour(addr Addr, queueCapacity, minBackoffExponent int) *Neighbour {
	return &Neighbour{
		Addr:    addr,
		ring:    newRing(queueCapacity),
		backoff: newBackoff(minBackoffExponent),
	}
}

// QueueLen reports how many packets are currently queued for this
// neighbour.
func (n *Neighbour) QueueLen() int { return n.ring.len() }

// QueueEmpty reports whether this neighbour's ring is empty.
func (n *Neighbour) QueueEmpty() bool { return n.ring.empty() }

// QueueFull reports whether this neighbour's ring is at capacity.
func (n *Neighbour) QueueFull() bool { return n.ring.full() }

// PeekPacket returns the head packet without consuming it, or nil if the
// ring is empty or (on a shared link) backoff has not expired yet
// (spec.md §4.2 get_packet_for_nbr).
func (n *Neighbour) PeekPacket(sharedLink bool) *Packet {
	head := n.ring.peek()
	if head == nil {
		return nil
	}
	if sharedLink && !n.backoff.ready() {
		return nil
	}
	return head
}

// DequeuePacket consumes the head packet (spec.md §4.2
// remove_packet_from_queue).
func (n *Neighbour) DequeuePacket() *Packet { return n.ring.dequeue() }

// OnTXSuccess applies the post-TX backoff policy for a successful unicast
// transmission (spec.md §4.2): shared links, or a now-empty queue, reset
// backoff to its minimum.
func (n *Neighbour) OnTXSuccess(sharedLink bool, minExponent int) {
	if sharedLink || n.QueueEmpty() {
		n.backoff.reset(minExponent)
	}
}

// OnTXFailure applies the post-TX backoff policy for a failed transmission.
// Only shared-link failures affect backoff state; dedicated-link failures
// change neither exponent nor window (spec.md §4.2).
func (n *Neighbour) OnTXFailure(sharedLink bool, maxExponent int) {
	if sharedLink {
		n.backoff.fail(maxExponent)
	}
}

// DecrementBackoff is called once per shared slot whose target address
// matches this neighbour (spec.md §4.2, §4.4 step 5).
func (n *Neighbour) DecrementBackoff() { n.backoff.decrement() }

// RecordETX folds a transmission outcome into the EWMA link-quality
// estimate. transmissions is the number of attempts the packet actually
// took (1 means it succeeded on the first try).
func (n *Neighbour) RecordETX(transmissions int) {
	measured := float64(transmissions)
	if !n.etxSeen {
		n.etx = measured
		n.etxSeen = true
		return
	}
	n.etx = etxSmoothing*n.etx + (1-etxSmoothing)*measured
}

// ETX returns the current expected-transmission-count estimate, or 0 if no
// transmission has completed yet.
func (n *Neighbour) ETX() float64 { return n.etx }

// eligibleForGC reports whether this neighbour may be reclaimed: empty
// queue, zero TX links, and neither broadcast, the EB pseudo-neighbour, nor
// the current time source (spec.md §3, §4.7).
func (n *Neighbour) eligibleForGC() bool {
	return n.QueueEmpty() && n.TxLinksCount == 0 && !n.IsBroadcast && !n.IsTimeSource && n.Addr != ebAddr
}
