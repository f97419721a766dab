package radio

// Framer constructs and deconstructs on-air frames from/to a Frame value
// (spec.md §6 framer contract). The
// default implementation below is the Frame type in this package; it is
// an interface so an alternate wire format (e.g. a real IEEE 802.15.4
// PHY/MAC header) can be swapped in without touching package mac.
type Framer interface {
	Create(f *Frame) ([]byte, error)
	Parse(data []byte) (*Frame, error)
}

// DefaultFramer implements Framer using this package's length-prefixed,
// CRC32-terminated wire format.
type DefaultFramer struct{}

func (DefaultFramer) Create(f *Frame) ([]byte, error) { return Encode(f) }
func (DefaultFramer) Parse(data []byte) (*Frame, error) { return Decode(data) }
