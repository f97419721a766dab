package queue

// Result is the outcome of a transmission attempt, reported to a packet's
// sent-callback (spec.md §7).
type Result uint8

const (
	ResultPending Result = iota
	ResultOK
	ResultNoACK
	ResultCollision
	ResultErr
	ResultErrFatal
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNoACK:
		return "no-ack"
	case ResultCollision:
		return "collision"
	case ResultErr:
		return "err"
	case ResultErrFatal:
		return "err-fatal"
	default:
		return "pending"
	}
}

// SentCallback is the tagged closure the spec's design notes (§9) call for:
// a function pointer plus opaque argument, stored by value in the packet
// descriptor so the radio never needs to know what it means.
type SentCallback func(arg any, result Result, transmissions int)

// Packet is a reference to an external packet buffer plus the bookkeeping
// the slot engine needs to retry and report it (spec.md §3).
type Packet struct {
	Payload       []byte
	Dest          Addr
	Callback      SentCallback
	Arg           any
	Transmissions int
	LastResult    Result
}

// NewPacket builds a packet descriptor ready to be handed to a neighbour's
// queue via Table.Enqueue.
func NewPacket(dest Addr, payload []byte, cb SentCallback, arg any) *Packet {
	return &Packet{Dest: dest, Payload: payload, Callback: cb, Arg: arg}
}
