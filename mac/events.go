package mac

import "github.com/ystepanoff/tsch/radio"

// pollDeferredEvents drains the dequeued-packet ring (invoking
// sent-callbacks, then garbage-collecting idle neighbours) and the
// input-frame ring (delivering data upward, folding an EB from our time
// source into ASN drift correction), spec.md §4.7. Called once at the
// end of every slot Step runs with a scheduled link, including a slot
// that stayed idle.
func (c *Context) pollDeferredEvents() {
	for {
		item, ok := c.dequeued.pop()
		if !ok {
			break
		}
		if item.packet.Callback != nil {
			item.packet.Callback(item.packet.Arg, item.result, item.packet.Transmissions)
		}
	}
	c.neighbours.GC()

	for {
		item, ok := c.input.pop()
		if !ok {
			break
		}
		c.deliverInput(item)
	}
}

// deliverInput dispatches one received frame per spec.md §4.7: an EB
// from our time source corrects ASN drift under the global lock, a data
// frame is handed to OnInput, and an ordinary keepalive/ack carries no
// payload and is simply dropped after having already served its sync
// purpose in the RX sub-machine.
func (c *Context) deliverInput(item inputItem) {
	f := item.frame
	if f.Type == radio.FrameBeacon && f.Sync != nil {
		if ts := c.neighbours.GetTimeSource(); ts != nil && ts.Addr == f.Src {
			if c.lock.TryAcquire() {
				c.correctASNDrift(f.Sync.ASN)
				c.lock.Release()
			}
		}
		return
	}
	if f.Type == radio.FrameData && c.OnInput != nil {
		c.OnInput(f.Src, f.Payload, item.asn, item.rssi)
	}
}

// correctASNDrift applies the EB's stamped ASN in one shot: diff :=
// ebASN - currentASN, added back via an unsigned Add so the two's
// complement wraparound does the subtraction when diff is negative. This
// matches ASN_DIFF/ASN_DEC/ASN_INC in tsch.c, which correct the full
// divergence on a single EB rather than nudging by a fixed step.
func (c *Context) correctASNDrift(ebASN uint64) {
	diff := int64(ebASN) - int64(c.currentASN.Load())
	c.currentASN.Add(uint64(diff))
}
