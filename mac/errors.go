package mac

import "github.com/pkg/errors"

// ErrorKind enumerates the error taxonomy of spec.md §7. Nothing above
// this package ever sees these directly except through a packet's
// sent-callback, the upward input delivery, or the Associated() /
// Stats() observables — they exist here for logging and for Stats'
// counters.
type ErrorKind uint8

const (
	KindTXOK ErrorKind = iota
	KindTXNoACK
	KindTXCollision
	KindTXErr
	KindTXErrFatal
	KindEnqueueFail
	KindDeadlineMiss
	KindDesync
	KindInputQueueFull
	KindEBJoinPriorityTooHigh
)

func (k ErrorKind) String() string {
	switch k {
	case KindTXOK:
		return "tx_ok"
	case KindTXNoACK:
		return "tx_noack"
	case KindTXCollision:
		return "tx_collision"
	case KindTXErr:
		return "tx_err"
	case KindTXErrFatal:
		return "tx_err_fatal"
	case KindEnqueueFail:
		return "enqueue_fail"
	case KindDeadlineMiss:
		return "deadline_miss"
	case KindDesync:
		return "desync"
	case KindInputQueueFull:
		return "input_queue_full"
	case KindEBJoinPriorityTooHigh:
		return "eb_jp_too_high"
	default:
		return "unknown"
	}
}

var (
	// ErrNotAssociated is returned by operations that require an
	// established network association (spec.md §7 observable state).
	ErrNotAssociated = errors.New("mac: not associated")
)
