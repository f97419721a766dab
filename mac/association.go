package mac

import (
	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/asn"
	"github.com/ystepanoff/tsch/radio"
)

// AssociationStep performs one iteration of the association loop
// (spec.md §4.5), meant to be called on a ~10ms period by the caller
// while Associated() is false. wallClockSeconds lets tests and the host
// loop supply a monotonic seconds counter without this package
// depending on a wall clock directly, keeping Step/AssociationStep
// deterministic and unit-testable.
func (c *Context) AssociationStep(wallClockSeconds int64) bool {
	if c.associated.Load() {
		return true
	}
	if c.isCoordinator {
		c.BecomeCoordinator()
		return true
	}

	pseudoASN := asn.New(uint64(c.rng.Int63()))
	ch := asn.Hop(pseudoASN, uint16(wallClockSeconds%int64(len(c.cfg.HoppingSequence))), c.cfg.HoppingSequence)
	if err := c.driver.SetChannel(ch); err != nil {
		c.log.Debug("association: set channel failed", zap.Error(err))
	}
	c.driver.On()
	defer c.driver.Off()

	if !c.driver.PendingPacket() {
		return false
	}

	buf := make([]byte, radio.MaxFrameSize)
	n, err := c.driver.Read(buf)
	if err != nil || n == 0 {
		return false
	}
	frame, err := c.framer.Parse(buf[:n])
	if err != nil || frame.Type != radio.FrameBeacon || frame.Sync == nil {
		return false
	}

	if c.AuthenticateEB != nil && !c.AuthenticateEB(buf[:n]) {
		return false
	}
	if c.EBSanityCheck != nil && !c.EBSanityCheck(frame.Sync.ASN, wallClockSeconds) {
		return false
	}
	if frame.Sync.JoinPriority >= c.cfg.MaxJoinPriority {
		c.log.Debug("rejecting EB: join priority too high", zap.String("kind", KindEBJoinPriorityTooHigh.String()))
		return false
	}

	if _, err := c.neighbours.Add(frame.Src); err != nil {
		return false
	}
	if _, err := c.neighbours.UpdateTimeSource(frame.Src); err != nil {
		return false
	}

	c.currentASN.Store(frame.Sync.ASN)
	c.lastSyncASN.Store(frame.Sync.ASN)
	c.joinPriority.Store(uint32(frame.Sync.JoinPriority) + 1)
	// current_link_start = packet_timestamp - TsTxOffset; this host path has
	// no hardware SFD timestamp, so it approximates with the EB's own ASN.
	c.currentLinkStart.Store(frame.Sync.ASN - c.timing.TsTxOffset)
	c.associated.Store(true)

	c.log.Info("associated", zap.Stringer("time_source", frame.Src), zap.Uint64("asn", frame.Sync.ASN), zap.Uint8("join_priority", uint8(frame.Sync.JoinPriority+1)))
	return true
}
