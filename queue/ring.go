package queue

import "sync/atomic"

// ring is a single-producer/single-consumer packet FIFO with a power-of-two
// capacity, so index arithmetic is a bitwise mask and the commit of a
// put/get is a single aligned atomic store the other side observes
// (spec.md §4.2, §9 design note). It is adapted from the teacher's
// driver/stub ringBuffer, which used a mutex-protected head/tail/count;
// here the producer (cooperative upper-layer code) and the consumer (the
// slot engine, standing in for interrupt context) never touch the same
// index, so no lock is needed.
type ring struct {
	buf  []*Packet
	mask uint32
	put  atomic.Uint32 // next free slot to fill; advanced by the producer
	get  atomic.Uint32 // next slot to consume; advanced by the consumer
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*Packet, capacity), mask: uint32(capacity - 1)}
}

func (r *ring) cap() int { return len(r.buf) }

func (r *ring) len() int {
	return int(r.put.Load() - r.get.Load())
}

func (r *ring) full() bool {
	return r.len() >= len(r.buf)
}

func (r *ring) empty() bool {
	return r.put.Load() == r.get.Load()
}

// enqueue reserves a slot, fills it, then commits by advancing put with a
// single atomic write (spec.md §4.2 add_packet). Called by the producer
// only.
func (r *ring) enqueue(p *Packet) bool {
	if r.full() {
		return false
	}
	idx := r.put.Load()
	r.buf[idx&r.mask] = p
	r.put.Store(idx + 1)
	return true
}

// peek returns the head packet without consuming it. Safe to call without
// any lock, including from the consumer side at interrupt-equivalent
// timing (spec.md §4.2 get_packet_for_nbr).
func (r *ring) peek() *Packet {
	if r.empty() {
		return nil
	}
	return r.buf[r.get.Load()&r.mask]
}

// dequeue consumes the head by advancing get with a single atomic write
// (spec.md §4.2 remove_packet_from_queue). Called by the consumer only.
func (r *ring) dequeue() *Packet {
	idx := r.get.Load()
	if idx == r.put.Load() {
		return nil
	}
	p := r.buf[idx&r.mask]
	r.buf[idx&r.mask] = nil
	r.get.Store(idx + 1)
	return p
}
