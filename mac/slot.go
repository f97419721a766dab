package mac

import (
	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/asn"
	"github.com/ystepanoff/tsch/config"
	"github.com/ystepanoff/tsch/queue"
	"github.com/ystepanoff/tsch/radio"
	"github.com/ystepanoff/tsch/schedule"
)

// Step runs exactly one atomic slot (spec.md §4.4) and returns the
// absolute tick at which the caller should re-arm its timer for the
// next active slot. The TX and RX sub-machines run to completion
// synchronously rather than yielding across a real timer interrupt —
// the design note's PREPARE/WAIT_TX/WAIT_ACK/DONE and
// WAIT_RX_START/READING/ACK_WAIT/DONE states describe the sequence of
// radio operations below; driver/nrf is where those states become real
// suspension points across hardware timer interrupts, while the host
// driver/sim completes every radio call immediately.
func (c *Context) Step(now uint64) uint64 {
	a := c.ASN()
	// current_link_start: the tick this slot was scheduled to begin at,
	// the reference point runRX measures hardware SFD drift against.
	c.currentLinkStart.Store(now)
	link := c.schedule.LinkAtASN(a)
	if link == nil || c.lock.Requested() {
		return c.advanceAndRearm(now)
	}

	nbr, pkt := c.packetForLink(link)

	ch := asn.Hop(a, link.ChannelOffset, c.cfg.HoppingSequence)
	if err := c.driver.SetChannel(ch); err != nil {
		c.log.Debug("set channel failed", zap.Error(err))
	}

	switch {
	case pkt != nil:
		c.runTX(link, nbr, pkt, a)
	case link.IsRX():
		c.runRX(link, a)
	}

	// step 5: every TX-SHARED slot ages the matching backoff windows,
	// whether or not a packet went out in it.
	if link.IsTX() && link.IsShared() {
		c.neighbours.DecrementSharedBackoffs(link.Dest)
	}

	c.pollDeferredEvents()

	return c.advanceAndRearm(now)
}

// packetForLink implements get_packet_and_neighbor_for_link (spec.md
// §4.4 step 2): the EB queue for an advertising link, otherwise the
// link's own destination queue, otherwise — for an empty broadcast
// link — any non-broadcast neighbour with a ready packet.
func (c *Context) packetForLink(link *schedule.Link) (*queue.Neighbour, *queue.Packet) {
	if link.Type == schedule.LinkAdvertising || link.Type == schedule.LinkAdvertisingOnly {
		eb := c.neighbours.Get(c.neighbours.EBAddr())
		if eb == nil {
			return nil, nil
		}
		if p := eb.PeekPacket(link.IsShared()); p != nil {
			return eb, p
		}
		return nil, nil
	}

	if !link.IsTX() {
		return nil, nil
	}

	n := c.neighbours.Get(link.Dest)
	if n != nil {
		if p := n.PeekPacket(link.IsShared()); p != nil {
			return n, p
		}
	}
	if link.Dest.IsBroadcast() {
		if any, p := c.neighbours.GetUnicastPacketForAny(link.IsShared()); p != nil {
			return any, p
		}
	}
	return nil, nil
}

// runTX is the TX sub-machine (spec.md §4.4 steps a-h).
func (c *Context) runTX(link *schedule.Link, nbr *queue.Neighbour, pkt *queue.Packet, a asn.ASN) {
	if c.dequeued.full() {
		return // step a: reserve failed, abort
	}

	// An EB is queued against the EB pseudo-neighbour but transmitted as a
	// genuine broadcast; every other destination is sent as-is.
	dest := nbr.Addr
	isEB := nbr.Addr == c.neighbours.EBAddr()
	if isEB {
		dest = c.neighbours.BroadcastAddr()
	}

	frame := &radio.Frame{
		Dest: dest,
		Src:  c.addr,
		Seq:  c.nextSeq(),
	}
	if !dest.IsBroadcast() {
		frame.Flags |= radio.FlagAckRequested
	}

	switch {
	case isEB:
		// step b: stamp the embedded Sync-IE with the current ASN.
		frame.Type = radio.FrameBeacon
		frame.Sync = &radio.SyncIE{ASN: a.Uint64(), JoinPriority: c.JoinPriority()}
	case len(pkt.Payload) == 0:
		frame.Type = radio.FrameKeepalive
	default:
		frame.Type = radio.FrameData
		frame.Payload = pkt.Payload
	}

	data, err := c.framer.Create(frame) // step c: stage into the prepare buffer
	if err != nil {
		c.finishTX(link, nbr, pkt, queue.ResultErrFatal, KindTXErrFatal)
		return
	}

	if c.cfg.CCAEnabled && !c.driver.ChannelClear() { // step d
		c.finishTX(link, nbr, pkt, queue.ResultCollision, KindTXCollision)
		return
	}

	if err := c.driver.Prepare(data); err != nil { // step e
		c.finishTX(link, nbr, pkt, queue.ResultErr, KindTXErr)
		return
	}
	ok, err := c.driver.Transmit()
	if err != nil || !ok {
		c.finishTX(link, nbr, pkt, queue.ResultErr, KindTXErr)
		return
	}

	if dest.IsBroadcast() { // step g
		c.finishTX(link, nbr, pkt, queue.ResultOK, KindTXOK)
		return
	}

	c.finishTX(link, nbr, pkt, c.waitForACK(nbr, a), KindTXNoACK) // step f
}

// waitForACK pulls the turnaround ACK off the driver (step f). On host
// driver/sim this resolves instantly since Transmit already delivered
// the frame to every subscriber on the channel; driver/nrf performs the
// actual guard-time-bounded busy-wait this models.
func (c *Context) waitForACK(nbr *queue.Neighbour, a asn.ASN) queue.Result {
	c.driver.On()
	defer c.driver.Off()

	if !c.driver.PendingPacket() {
		return queue.ResultNoACK
	}
	buf := make([]byte, radio.MaxFrameSize)
	n, err := c.driver.Read(buf)
	if err != nil || n == 0 {
		return queue.ResultNoACK
	}
	ack, err := c.framer.Parse(buf[:n])
	if err != nil || ack.Type != radio.FrameAck || ack.Dest != c.addr {
		return queue.ResultNoACK
	}
	if ack.Ack != nil && nbr.IsTimeSource {
		drift := int64(ack.Ack.DriftTicks)
		c.recordDrift(drift)
		c.lastSyncASN.Store(a.Uint64())
	}
	return queue.ResultOK
}

// finishTX applies the post-TX backoff policy and either retires the
// packet to the dequeued ring or leaves it queued for retry (step h).
func (c *Context) finishTX(link *schedule.Link, nbr *queue.Neighbour, pkt *queue.Packet, result queue.Result, kind ErrorKind) {
	pkt.Transmissions++
	pkt.LastResult = result

	// Remove the packet from the ring before consulting backoff: OnTXSuccess's
	// reset-on-now-empty branch must see the post-removal queue state, the
	// same order update_neighbor_state uses in tsch.c.
	if result == queue.ResultOK || pkt.Transmissions >= c.cfg.MaxFrameRetries+1 {
		nbr.DequeuePacket()
		nbr.RecordETX(pkt.Transmissions)
		if !c.dequeued.push(dequeuedItem{packet: pkt, result: result}) {
			c.stats.DequeueDropped.Add(1)
		}
	}

	shared := link.IsShared()
	if result == queue.ResultOK {
		nbr.OnTXSuccess(shared, config.MinBackoffExponent)
	} else {
		nbr.OnTXFailure(shared, config.MaxBackoffExponent)
	}

	c.log.Debug("tx complete", zap.Stringer("dest", nbr.Addr), zap.String("kind", kind.String()), zap.Int("transmissions", pkt.Transmissions))
}

// runRX is the RX sub-machine (spec.md §4.4 steps a-g).
func (c *Context) runRX(link *schedule.Link, a asn.ASN) {
	if c.input.full() { // step a
		c.stats.InputDropped.Add(1)
		return
	}

	c.driver.On() // step b
	defer c.driver.Off()

	if !c.driver.ReceivingPacket() && !c.driver.PendingPacket() { // step c
		return
	}

	// estimated_drift = expected_rx_time - rx_start_time (tsch.c's RX
	// protothread): expected_rx_time is this slot's start plus TsTxOffset,
	// rx_start_time is the hardware SFD timestamp latched when the frame
	// was detected. Drivers that don't implement radio.SFDTimer leave this
	// at zero rather than fabricating a number.
	var estimatedDrift int64
	if ts, ok := c.driver.(radio.SFDTimer); ok {
		if rxTicks, ok := ts.ReadSFDTimer(); ok {
			expected := c.currentLinkStart.Load() + c.timing.TsTxOffset
			estimatedDrift = int64(expected) - int64(rxTicks)
		}
	}

	buf := make([]byte, radio.MaxFrameSize)
	n, err := c.driver.Read(buf) // step d
	if err != nil || n == 0 {
		return
	}
	frame, err := c.framer.Parse(buf[:n])
	if err != nil {
		return
	}
	if frame.Dest != c.addr && !frame.Dest.IsBroadcast() {
		return
	}
	if c.dup.Seen(frame.Src, frame.Seq) {
		return
	}
	c.dup.Record(frame.Src, frame.Seq)

	clampedDrift := clampDrift(estimatedDrift, int64(c.timing.TsLongGT/2))
	if frame.Flags&radio.FlagAckRequested != 0 { // step e
		c.sendAck(frame, a, int32(clampedDrift))
	}

	if nbr := c.neighbours.Get(frame.Src); nbr != nil && nbr.IsTimeSource { // step f
		c.recordDrift(-estimatedDrift)
		c.lastSyncASN.Store(a.Uint64())
	}

	if !c.input.push(inputItem{frame: frame, asn: a}) { // step g
		c.stats.InputDropped.Add(1)
	}
}

func (c *Context) sendAck(frame *radio.Frame, a asn.ASN, driftTicks int32) {
	ack := &radio.Frame{
		Dest: frame.Src,
		Src:  c.addr,
		Type: radio.FrameAck,
		Seq:  frame.Seq,
		Ack:  &radio.AckIE{DriftTicks: driftTicks},
	}
	if c.NackPolicy != nil && c.NackPolicy(frame.Src) {
		ack.Ack.NACK = true
		ack.Flags |= radio.FlagNACK
	}
	data, err := c.framer.Create(ack)
	if err != nil {
		return
	}
	if err := c.driver.Prepare(data); err != nil {
		return
	}
	if _, err := c.driver.Transmit(); err != nil {
		c.log.Debug("ack transmit failed", zap.Error(err))
	}
}

// advanceAndRearm implements spec.md §4.4 steps 6-7: compute next
// wakeup, advance ASN, apply the pending drift correction once, check
// for desynchronisation, and loop if the computed deadline has already
// passed.
func (c *Context) advanceAndRearm(now uint64) uint64 {
	a := c.ASN()
	link, dist := c.schedule.NextActiveLink(a)
	if link == nil {
		dist = 1
	}
	next := a.Add(dist)

	// currentLink here caches the *next scheduled* link purely so
	// OnLinkRemoved can drop a dangling reference if it's removed before
	// its slot arrives (spec.md §4.3 remove_link); the link actually run
	// each Step is always re-resolved fresh via LinkAtASN, which is what
	// applies the TX-priority tie-break.
	c.currentLink = link
	c.currentASN.Store(next.Uint64())

	fireAt := now + dist*c.timing.TsSlotDuration + uint64(c.pendingDrift)
	c.pendingDrift = 0

	if !c.isCoordinator {
		if next.Sub(asn.New(c.lastSyncASN.Load())) > int64(c.cfg.DesyncThreshold) {
			if c.associated.Swap(false) {
				c.stats.Desyncs.Add(1)
				c.log.Info("desynchronised, leaving network", zap.String("kind", KindDesync.String()))
			}
		}
	}

	if asn.DeadlineMissed(now, fireAt, 0, 0) {
		c.stats.DeadlineMisses.Add(1)
		c.log.Debug("deadline missed, skipping a slot", zap.String("kind", KindDeadlineMiss.String()))
		return c.advanceAndRearm(now)
	}
	return fireAt
}
