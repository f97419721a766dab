package radio

import "github.com/pkg/errors"

var (
	ErrShortFrame     = errors.New("frame shorter than header")
	ErrBadTerminal    = errors.New("frame missing terminal byte")
	ErrBadCRC         = errors.New("frame failed CRC check")
	ErrPayloadTooLong = errors.New("payload exceeds maximum frame size")
)
