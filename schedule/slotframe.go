package schedule

import "github.com/ystepanoff/tsch/asn"

// Slotframe is a repeating cycle of timeslots (spec.md §3). At most one
// link may exist per (slotframe, timeslot) pair.
type Slotframe struct {
	Handle uint16
	Size   asn.Divisor

	links map[uint16]*Link // keyed by timeslot offset
}

func newSlotframe(handle uint16, size uint16) *Slotframe {
	return &Slotframe{
		Handle: handle,
		Size:   asn.NewDivisor(uint32(size)),
		links:  make(map[uint16]*Link),
	}
}

// SizeSlots returns the number of timeslots in this slotframe's cycle.
func (s *Slotframe) SizeSlots() uint16 { return uint16(s.Size.Value()) }

// LinkAt returns the link installed at the given timeslot offset, or nil.
func (s *Slotframe) LinkAt(timeslot uint16) *Link { return s.links[timeslot] }

// timeslotFor reduces an ASN to this slotframe's timeslot index using the
// cached-reciprocal Divisor (spec.md §4.1), avoiding a hardware divide.
func (s *Slotframe) timeslotFor(a asn.ASN) uint16 {
	return uint16(s.Size.Mod(a))
}

// Links returns every link currently installed in this slotframe.
func (s *Slotframe) Links() []*Link {
	out := make([]*Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	return out
}
