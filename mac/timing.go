package mac

// Timing holds the per-platform hardware-timer-tick constants the slot
// state machine's deadlines are expressed in (spec.md §4.1). Units are
// whatever tick resolution the caller's Clock/driver pair uses; the
// teacher hard-codes a single platform's constants inline, generalised
// here into a struct so driver/sim and driver/nrf can each supply their
// own without touching package mac.
type Timing struct {
	// TsTxOffset is the delay from slot start to transmit.
	TsTxOffset uint64
	// TsLongGT is the long guard time the receiver opens early by.
	TsLongGT uint64
	// TsShortGT is the short guard time used while waiting for an ACK.
	TsShortGT uint64
	// TsTxAckDelay is the turnaround after a TX before listening for an ACK.
	TsTxAckDelay uint64
	// TsSlotDuration is the nominal length of one timeslot.
	TsSlotDuration uint64
	// DelayTx/DelayRx compensate for radio pipeline latency.
	DelayTx uint64
	DelayRx uint64
}

// DefaultTiming mirrors IEEE 802.15.4-2015 TSCH's commonly used 10ms
// slot (macTsTimeslotLength default), expressed in microsecond ticks.
func DefaultTiming() Timing {
	return Timing{
		TsTxOffset:     2120,
		TsLongGT:       600,
		TsShortGT:      300,
		TsTxAckDelay:   1000,
		TsSlotDuration: 10000,
		DelayTx:        50,
		DelayRx:        50,
	}
}
