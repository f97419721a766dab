// Package radio defines the boundary the MAC core crosses into its radio
// driver and framer collaborators (spec.md §6), plus a concrete Frame
// implementation generalising the teacher's protocol package framing.
//
// The physical radio driver is explicitly out of scope for the MAC core
// (spec.md §1); this package only defines the contract and the wire
// format. Concrete drivers live in driver/sim (host) and driver/nrf
// (embedded).
package radio

// Driver is the pull-mode, interrupt-free radio contract the slot engine
// drives (spec.md §6). No method here blocks longer than the caller's own
// busy-wait loop: Transmit and Read act on whatever was previously staged
// with Prepare/SetChannel.
type Driver interface {
	SetChannel(ch uint8) error
	On()
	Off()

	// Prepare stages a frame for transmission without sending it.
	Prepare(buf []byte) error
	// Transmit sends the most recently prepared frame. It reports whether
	// the radio accepted the send (spec.md §7 TX_ERR otherwise).
	Transmit() (ok bool, err error)

	ReceivingPacket() bool
	PendingPacket() bool
	// Read copies the next received frame into dest, returning the number
	// of bytes copied.
	Read(dest []byte) (int, error)

	// ChannelClear performs a Clear-Channel Assessment.
	ChannelClear() bool
}

// AddressDecoder is an optional Driver capability: when supported, it lets
// the MAC ask the radio hardware to pass ACK frames through its address
// filter (spec.md §6).
type AddressDecoder interface {
	AddressDecode(enable bool) error
}

// SFDTimer is an optional Driver capability exposing a hardware-timestamped
// start-of-frame-delimiter event, used for higher-precision sync than a
// software busy-wait loop can offer (spec.md §6).
type SFDTimer interface {
	ReadSFDTimer() (ticks uint64, ok bool)
}
