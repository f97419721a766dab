// Package mac implements the TSCH slot state machine, association,
// beacon/keepalive, and the global lock that coordinates them with the
// schedule and neighbour-queue packages, grounded on the slot-machine
// shape of original_source/core/net/mac/tsch/tsch-slot-operation.c and
// the teacher's single-context style (nrfcomm's Device aggregating
// radio + protocol state).
package mac

import (
	"math/rand"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/asn"
	"github.com/ystepanoff/tsch/config"
	"github.com/ystepanoff/tsch/queue"
	"github.com/ystepanoff/tsch/radio"
	"github.com/ystepanoff/tsch/schedule"
)

// InputHandler is invoked by the deferred-events process for every data
// frame addressed to us or to the broadcast address (spec.md §4.7).
type InputHandler func(src queue.Addr, payload []byte, a asn.ASN, rssi int8)

// NackPolicy decides whether an outgoing ACK should carry the NACK bit;
// an externally supplied hook (spec.md §4.4 RX sub-machine step e).
type NackPolicy func(src queue.Addr) bool

// AuthenticateEB optionally validates a received EB's raw bytes before
// its sender is trusted as a time source. Link-layer security is out of
// scope here (spec.md §9 open question; see DESIGN.md) so the default,
// nil, accepts every EB exactly as the original does.
type AuthenticateEB func(payload []byte) bool

// EBSanityCheck optionally rejects an EB whose carried ASN diverges from
// the caller's wall-clock estimate beyond a configured threshold
// (spec.md §4.5 step 3).
type EBSanityCheck func(ebASN uint64, wallClockSeconds int64) bool

// Context is the single MAC context object spec.md §9 calls for: every
// piece of process-wide mutable state (ASN, association, current link,
// drift, lock, rings) owned by one struct that both the slot engine and
// cooperative tasks operate on by reference. ASN and last-sync-ASN are
// written from Step (the interrupt-equivalent priority level, spec.md
// §5) and, before the slot engine runs, by AssociationStep and
// BecomeCoordinator; current-link is set by Step and cleared by the
// schedule's OnLinkRemoved hook. Everything else goes through the global
// lock or is itself lock-free.
type Context struct {
	cfg    config.Config
	timing Timing
	addr   queue.Addr

	driver radio.Driver
	framer radio.Framer

	schedule   *schedule.Manager
	neighbours *queue.Table
	dup        *dupCache

	lock *globalLock

	dequeued *fifoRing[dequeuedItem]
	input    *fifoRing[inputItem]

	currentASN       atomic.Uint64
	lastSyncASN      atomic.Uint64
	currentLinkStart atomic.Uint64
	associated       atomic.Bool
	isCoordinator    bool
	joinPriority     atomic.Uint32

	currentLink  *schedule.Link
	pendingDrift int64 // ticks, applied once at the next re-arm (§4.4 step 6)

	seq atomic.Uint32

	rng *rand.Rand

	stats Stats

	OnInput        InputHandler
	NackPolicy     NackPolicy
	AuthenticateEB AuthenticateEB
	EBSanityCheck  EBSanityCheck

	log *zap.Logger
}

// New creates a Context bound to its schedule, neighbour table, and
// radio driver. The caller installs at least one slotframe before
// calling Step — schedule construction is the caller's responsibility
// (spec.md §1 Non-goals).
func New(cfg config.Config, timing Timing, selfAddr queue.Addr, driver radio.Driver, framer radio.Framer, sched *schedule.Manager, neighbours *queue.Table, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	if framer == nil {
		framer = radio.DefaultFramer{}
	}
	c := &Context{
		cfg:        cfg,
		timing:     timing,
		addr:       selfAddr,
		driver:     driver,
		framer:     framer,
		schedule:   sched,
		neighbours: neighbours,
		dup:        newDupCache(cfg.DupCacheSize),
		lock:       &globalLock{},
		dequeued:   newFifoRing[dequeuedItem](cfg.QueueCapacity * cfg.MaxNeighbours),
		input:      newFifoRing[inputItem](cfg.QueueCapacity * cfg.MaxNeighbours),
		rng:        rand.New(rand.NewSource(1)),
		log:        log,
	}
	c.joinPriority.Store(uint32(cfg.MaxJoinPriority))
	neighbours.SetLockHeld(c.lock.Held)

	sched.OnLinkRemoved = func(l *schedule.Link) {
		if c.currentLink == l {
			c.currentLink = nil
		}
	}
	return c
}

// ASN returns the current absolute slot number.
func (c *Context) ASN() asn.ASN { return asn.New(c.currentASN.Load()) }

// LastSyncASN returns the ASN at which synchronisation was last
// refreshed from the time source.
func (c *Context) LastSyncASN() asn.ASN { return asn.New(c.lastSyncASN.Load()) }

// Associated reports whether this node currently considers itself
// associated with a TSCH network (spec.md §7 observable state).
func (c *Context) Associated() bool { return c.associated.Load() }

// JoinPriority returns this node's current join priority.
func (c *Context) JoinPriority() uint8 { return uint8(c.joinPriority.Load()) }

// Addr returns this node's own link-layer address.
func (c *Context) Addr() queue.Addr { return c.addr }

// Neighbours exposes the neighbour table for schedule and application
// setup (add_link destinations, packet enqueue).
func (c *Context) Neighbours() *queue.Table { return c.neighbours }

// Schedule exposes the schedule manager for slotframe/link setup.
func (c *Context) Schedule() *schedule.Manager { return c.schedule }

// BecomeCoordinator initialises this node as the network root: ASN 0,
// join priority 0, associated immediately (spec.md §4.5).
func (c *Context) BecomeCoordinator() {
	c.isCoordinator = true
	c.currentASN.Store(0)
	c.lastSyncASN.Store(0)
	c.joinPriority.Store(0)
	c.associated.Store(true)
}

// IsCoordinator reports whether BecomeCoordinator has been called.
func (c *Context) IsCoordinator() bool { return c.isCoordinator }

func (c *Context) nextSeq() uint8 { return uint8(c.seq.Add(1) - 1) }

// recordDrift folds a signed tick offset into the pending drift
// correction, clamped to ±TsLongGT/2 (spec.md §4.4 step f, §8 boundary
// behaviour).
func (c *Context) recordDrift(ticks int64) {
	c.pendingDrift += clampDrift(ticks, int64(c.timing.TsLongGT/2))
}

// clampDrift bounds a drift measurement to ±limit, shared by the local
// correction accumulator and the value embedded in an outgoing ACK so
// both obey the same §8 boundary.
func clampDrift(ticks, limit int64) int64 {
	if ticks > limit {
		return limit
	}
	if ticks < -limit {
		return -limit
	}
	return ticks
}
