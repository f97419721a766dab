// Package config holds the runtime-tunable knobs of the TSCH MAC layer.
//
// The teacher package (nrfcomm/protocol) hard-codes its equivalent
// constants (queue depth, timeouts, channel range) at compile time; a TSCH
// schedule is installed by the caller at runtime, so its knobs are promoted
// to a struct here instead.
package config

import "github.com/pkg/errors"

// Defaults, named after the teacher's protocol/constants.go layout.
const (
	DefaultQueueCapacity   = 8 // per-neighbour packet ring, must stay a power of two
	DefaultMaxNeighbours   = 8
	DefaultMaxSlotframes   = 4
	DefaultDupCacheSize    = 8
	DefaultEBMinPeriod     = 4000 // ms
	DefaultEBMaxPeriod     = 50000
	DefaultKeepalivePeriod = 60000 // ms
	DefaultMaxJoinPriority = 0xFE
	DefaultDesyncThreshold = 1000 // slots
	DefaultMaxFrameRetries = 3

	MinBackoffExponent = 1
	MaxBackoffExponent = 7
)

// DefaultHoppingSequence is the IEEE 802.15.4 2.4 GHz channel page
// (channels 11..26), used because the original Contiki sequence is tuned
// for a specific testbed rather than the standard (spec.md §9 open
// question); callers may override it.
var DefaultHoppingSequence = []uint8{
	11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26,
}

// Config collects every knob listed in spec.md §6.
type Config struct {
	QueueCapacity   int // power of two
	MaxNeighbours   int
	MaxSlotframes   int
	DupCacheSize    int
	HoppingSequence []uint8

	EBMinPeriodMs     int64
	EBMaxPeriodMs     int64
	KeepalivePeriodMs int64
	DesyncThreshold   uint64 // slots
	MaxJoinPriority   uint8
	MaxFrameRetries   int

	CCAEnabled bool

	// TXPriority resolves ties when two slotframes both have a link at the
	// current ASN (spec.md §4.3, §8 scenario 5): prefer the TX-bearing link
	// when true, otherwise the lowest slotframe handle. The original gates
	// this at compile time; here it is a runtime choice (see DESIGN.md).
	TXPriority bool
}

// Default returns the configuration the teacher's constants would imply if
// promoted to a struct.
func Default() Config {
	seq := make([]uint8, len(DefaultHoppingSequence))
	copy(seq, DefaultHoppingSequence)

	return Config{
		QueueCapacity:     DefaultQueueCapacity,
		MaxNeighbours:     DefaultMaxNeighbours,
		MaxSlotframes:     DefaultMaxSlotframes,
		DupCacheSize:      DefaultDupCacheSize,
		HoppingSequence:   seq,
		EBMinPeriodMs:     DefaultEBMinPeriod,
		EBMaxPeriodMs:     DefaultEBMaxPeriod,
		KeepalivePeriodMs: DefaultKeepalivePeriod,
		DesyncThreshold:   DefaultDesyncThreshold,
		MaxJoinPriority:   DefaultMaxJoinPriority,
		MaxFrameRetries:   DefaultMaxFrameRetries,
		CCAEnabled:        true,
		TXPriority:        true,
	}
}

// Validate checks the invariants the rest of the package relies on.
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 || (c.QueueCapacity&(c.QueueCapacity-1)) != 0 {
		return errors.Errorf("queue capacity %d must be a power of two", c.QueueCapacity)
	}
	if c.MaxNeighbours <= 0 {
		return errors.New("max neighbours must be positive")
	}
	if c.MaxSlotframes <= 0 {
		return errors.New("max slotframes must be positive")
	}
	if len(c.HoppingSequence) == 0 {
		return errors.New("hopping sequence must not be empty")
	}
	if c.EBMinPeriodMs <= 0 || c.EBMaxPeriodMs < c.EBMinPeriodMs {
		return errors.Errorf("invalid EB period bounds [%d, %d]", c.EBMinPeriodMs, c.EBMaxPeriodMs)
	}
	if c.KeepalivePeriodMs <= 0 {
		return errors.New("keepalive period must be positive")
	}
	if c.MaxFrameRetries < 0 {
		return errors.New("max frame retries must not be negative")
	}
	return nil
}
