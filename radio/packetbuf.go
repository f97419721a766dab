package radio

import "github.com/ystepanoff/tsch/queue"

// PacketBuffer is a scratch area holding the packet attribute set spec.md
// §6 names (addresses, sequence number, RSSI, ACK expectation). It plays
// the role the teacher's Transmitter/Receiver internal buffer played for
// a single link-layer pair. Package mac does not use it: the slot engine
// builds Frame values and passes them to the Framer directly.
type PacketBuffer struct {
	Sender   queue.Addr
	Receiver queue.Addr
	Seq      uint8
	RSSI     int8
	AckExpected bool

	Data []byte
}

// Reset clears the buffer for reuse (no allocation after initialisation,
// spec.md §5 memory discipline).
func (b *PacketBuffer) Reset() {
	b.Sender = queue.Addr{}
	b.Receiver = queue.Addr{}
	b.Seq = 0
	b.RSSI = 0
	b.AckExpected = false
	b.Data = b.Data[:0]
}
