// Package asn implements the 40-bit Absolute Slot Number counter, the
// channel-hopping function, and the wrap-safe deadline check used by the
// slot state machine (spec.md §4.1).
package asn

// ASN is a 40-bit monotonic slot counter, split the way the original packs
// it (a 32-bit low word and an 8-bit high word) so that the hot-path
// increment never touches more than a machine word.
type ASN struct {
	lo uint32
	hi uint8
}

// Zero is the ASN value at network start (the coordinator's initial ASN).
var Zero = ASN{}

// New builds an ASN from a raw 40-bit value (top 24 bits ignored).
func New(v uint64) ASN {
	return ASN{lo: uint32(v), hi: uint8(v >> 32)}
}

// Uint64 returns the ASN as a 40-bit value in a uint64.
func (a ASN) Uint64() uint64 {
	return uint64(a.hi)<<32 | uint64(a.lo)
}

// Add advances the ASN by n slots, wrapping at 2^40 the way the hardware
// counter would.
func (a ASN) Add(n uint64) ASN {
	return New(a.Uint64() + n)
}

// Sub returns a-b as a signed slot distance. Both operands are assumed to
// be within one 2^40 wrap of each other, per spec.md §4.1's deadline check.
func (a ASN) Sub(b ASN) int64 {
	const mod = uint64(1) << 40
	d := (a.Uint64() - b.Uint64()) % mod
	if d > mod/2 {
		d -= mod
	}
	return int64(d)
}

// Less reports whether a precedes b in slot order.
func (a ASN) Less(b ASN) bool { return a.Sub(b) < 0 }

// Divisor caches a modulus and a precomputed 64-bit reciprocal so that
// `asn mod size` on the interrupt hot path never issues a division
// instruction, mirroring the original's TSCH_ASN_DIVISOR/TSCH_ASN_MOD
// macros (original_source/core/net/mac/tsch/tsch.c).
type Divisor struct {
	value uint32
	recip uint64 // floor((2^64-1) / value), value > 0
}

// NewDivisor builds a Divisor for a positive modulus.
func NewDivisor(value uint32) Divisor {
	if value == 0 {
		value = 1
	}
	return Divisor{value: value, recip: ^uint64(0) / uint64(value)}
}

// Value returns the modulus this Divisor was built from.
func (d Divisor) Value() uint32 { return d.value }

// Mod computes asn mod d.value using the cached reciprocal instead of a
// hardware divide.
func (d Divisor) Mod(a ASN) uint32 {
	v := a.Uint64()
	// q is a slight under-estimate of v/d.value; one correction pass is
	// always enough because recip itself under-estimates 2^64/value by
	// at most one unit.
	q := mulHi(v, d.recip)
	r := v - q*uint64(d.value)
	for r >= uint64(d.value) {
		r -= uint64(d.value)
	}
	return uint32(r)
}

// mulHi returns the high 64 bits of a*b computed over 128 bits.
func mulHi(a, b uint64) uint64 {
	const mask = 0xFFFFFFFF
	aLo, aHi := a&mask, a>>32
	bLo, bHi := b&mask, b>>32

	lo := aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	hi := aHi * bHi

	carry := ((lo >> 32) + (mid1 & mask) + (mid2 & mask)) >> 32
	return hi + (mid1 >> 32) + (mid2 >> 32) + carry
}

// Hop implements the channel-hopping function of spec.md §4.1:
//
//	channel = sequence[(asn mod len(sequence) + channelOffset) mod len(sequence)]
//
// It performs no heap allocation and no floating-point work, so it is safe
// to call from interrupt context.
func Hop(a ASN, channelOffset uint16, sequence []uint8) uint8 {
	n := uint32(len(sequence))
	if n == 0 {
		return 0
	}
	d := NewDivisor(n)
	idx := (d.Mod(a) + uint32(channelOffset)) % n
	return sequence[idx]
}

// DeadlineMissed reports whether the target time (reference+offset-minDelay)
// lies at or before now, treating both as points on a circular counter that
// may have wrapped at most once (spec.md §4.1). Times are in whatever
// monotonic tick unit the caller's timer uses (a fixed-width hardware
// counter): the comparison is done as wrapping unsigned arithmetic so a
// single wrap around the counter's range does not corrupt the result.
func DeadlineMissed(now, reference uint64, offset, minDelay int64) bool {
	target := reference + uint64(offset) - uint64(minDelay)
	// Forward distance from now to target, interpreted as a signed value
	// over half the counter's range: positive means target is still ahead.
	diff := int64(target - now)
	return diff <= 0
}
