// Package sim provides a host-side radio.Driver for tests and the demo
// cmd/ binaries, adapted from the teacher's driver/stub/stub_driver.go:
// the same fixed-capacity, overwrite-oldest receive ring (transmitted
// frames go to an unbounded log kept for assertions), extended
// with a shared Medium so two Drivers can actually exchange frames (the
// teacher's stub only looped a single driver's own output back to itself
// via InjectRx, which is enough for a single-link test but not for TSCH's
// multi-node scenarios, spec.md §8).
package sim

import (
	"sync"
)

const ringCapacity = 64

// Medium is a shared broadcast channel every Driver tuned to the same
// channel number can see, modelling the 2.4 GHz air interface for tests.
// It is intentionally nothing but "everyone subscribed to this channel
// gets a copy"; it makes no attempt to model propagation delay, fading,
// or genuine collisions — CCA and drop behaviour are driven explicitly by
// the test, not by the medium.
type Medium struct {
	mu   sync.Mutex
	subs map[uint8][]*Driver
}

// NewMedium creates an empty shared medium.
func NewMedium() *Medium {
	return &Medium{subs: make(map[uint8][]*Driver)}
}

func (m *Medium) subscribe(ch uint8, d *Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[ch] = append(m.subs[ch], d)
}

func (m *Medium) unsubscribe(ch uint8, d *Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[ch]
	for i, s := range list {
		if s == d {
			m.subs[ch] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// deliver hands data to every other subscriber currently on ch.
func (m *Medium) deliver(from *Driver, ch uint8, data []byte) {
	m.mu.Lock()
	targets := append([]*Driver(nil), m.subs[ch]...)
	m.mu.Unlock()

	frame := make([]byte, len(data))
	copy(frame, data)
	for _, d := range targets {
		if d == from {
			continue
		}
		d.injectRx(frame)
	}
}

// Driver is a host-side radio.Driver backed by Medium. With no Medium it
// receives only what a test feeds in through InjectRx; its own
// transmissions are never looped back to it.
type Driver struct {
	mu sync.Mutex

	medium  *Medium
	channel uint8
	on      bool

	prepared []byte
	txLog    [][]byte

	rx     [][]byte
	rxTick []uint64
	head   int

	// clock is a synthetic monotonic tick counter, advanced on every
	// time-modelling event (On, Transmit, a frame's arrival). It has no
	// relationship to the microsecond ticks Timing's constants are
	// expressed in — it exists so ReadSFDTimer has a real, deterministic
	// value to hand back instead of a driver that can never support
	// radio.SFDTimer at all.
	clock uint64
}

// New creates a driver not yet attached to any medium (equivalent to the
// teacher's stub.New()).
func New() *Driver { return &Driver{rx: make([][]byte, 0, ringCapacity)} }

// NewOnMedium creates a driver that publishes every transmission onto m
// and receives whatever else is published on its current channel.
func NewOnMedium(m *Medium) *Driver {
	d := New()
	d.medium = m
	if m != nil {
		m.subscribe(d.channel, d)
	}
	return d
}

func (d *Driver) SetChannel(ch uint8) error {
	d.mu.Lock()
	old := d.channel
	d.channel = ch
	m := d.medium
	d.mu.Unlock()

	if m != nil && old != ch {
		m.unsubscribe(old, d)
		m.subscribe(ch, d)
	}
	return nil
}

func (d *Driver) On() {
	d.mu.Lock()
	d.on = true
	d.clock++
	d.mu.Unlock()
}
func (d *Driver) Off() { d.mu.Lock(); d.on = false; d.mu.Unlock() }

func (d *Driver) Prepare(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepared = append(d.prepared[:0], buf...)
	return nil
}

func (d *Driver) Transmit() (bool, error) {
	d.mu.Lock()
	data := append([]byte(nil), d.prepared...)
	d.txLog = append(d.txLog, data)
	d.clock++
	medium := d.medium
	ch := d.channel
	d.mu.Unlock()

	if medium != nil {
		medium.deliver(d, ch, data)
	}
	return true, nil
}

func (d *Driver) ReceivingPacket() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.head < len(d.rx)
}

func (d *Driver) PendingPacket() bool { return d.ReceivingPacket() }

func (d *Driver) Read(dest []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.head >= len(d.rx) {
		return 0, nil
	}
	frame := d.rx[d.head]
	d.rx[d.head] = nil
	d.head++
	if d.head == len(d.rx) {
		d.rx = d.rx[:0]
		d.rxTick = d.rxTick[:0]
		d.head = 0
	}
	n := copy(dest, frame)
	return n, nil
}

func (d *Driver) ChannelClear() bool { return true }

// ReadSFDTimer implements radio.SFDTimer with the synthetic clock tick
// latched when the head-of-queue frame arrived, standing in for the
// nRF52840 TIMER1/PPI capture driver/nrf uses on real hardware.
func (d *Driver) ReadSFDTimer() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.head >= len(d.rxTick) {
		return 0, false
	}
	return d.rxTick[d.head], true
}

// InjectRx feeds data into this driver's receive ring as if the radio had
// received it, for tests that don't use a shared Medium.
func (d *Driver) InjectRx(data []byte) { d.injectRx(data) }

func (d *Driver) injectRx(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock++
	if len(d.rx)-d.head >= ringCapacity {
		// Overwrite the oldest when full, matching the teacher's
		// stub ringBuffer discipline.
		d.rx = d.rx[1:]
		d.rxTick = d.rxTick[1:]
		if d.head > 0 {
			d.head--
		}
	}
	d.rx = append(d.rx, data)
	d.rxTick = append(d.rxTick, d.clock)
}

// TxLog returns every frame this driver has transmitted, for assertions.
func (d *Driver) TxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.txLog))
	copy(out, d.txLog)
	return out
}
