//go:build tinygo || baremetal

package nrf

import (
	"unsafe"

	"device/nrf"

	"github.com/ystepanoff/tsch/radio"
)

// sfdCapturePPIChannel is the PPI channel wired at startup to latch
// TIMER1's count on RADIO.EVENTS_ADDRESS (the SFD event) into CC[0],
// giving runRX a hardware timestamp instead of a software busy-wait
// guess (spec.md §6 SFDTimer).
const sfdCapturePPIChannel = 0

// Driver implements radio.Driver against the real nRF52840 RADIO
// peripheral in pull mode: every method either programs a register and
// returns immediately or polls an EVENTS_* flag for a bounded number of
// iterations, matching the teacher's register-banging style in its Tx/Rx
// but restructured around the radio.Driver contract the slot engine expects
// instead of a single blocking Tx/Rx pair.
type Driver struct {
	buffer [radio.MaxFrameSize]byte
	on     bool

	timerStarted bool
}

// New returns a Driver ready to be handed to mac.New.
func New() *Driver {
	StartHFCLK()
	return &Driver{}
}

// startSFDTimer configures TIMER1 as a free-running 1MHz (1 tick/µs)
// counter and a PPI channel that captures it into CC[0] whenever the
// radio raises EVENTS_ADDRESS (SFD detected), the standard nRF52
// address-timestamp trick (mirrored by Nordic's nrf_802154 and Zephyr's
// ieee802154_nrf5 drivers). PRESCALER=4 divides the 16MHz base clock by
// 2^4, matching the microsecond tick Timing's constants already assume.
func startSFDTimer() {
	nrf.TIMER1.TASKS_STOP.Set(1)
	nrf.TIMER1.MODE.Set(nrf.TIMER_MODE_MODE_Timer)
	nrf.TIMER1.BITMODE.Set(nrf.TIMER_BITMODE_BITMODE_32Bit)
	nrf.TIMER1.PRESCALER.Set(4)
	nrf.TIMER1.TASKS_CLEAR.Set(1)
	nrf.TIMER1.TASKS_START.Set(1)

	nrf.PPI.CH[sfdCapturePPIChannel].EEP.Set(uint32(uintptr(unsafe.Pointer(&nrf.RADIO.EVENTS_ADDRESS))))
	nrf.PPI.CH[sfdCapturePPIChannel].TEP.Set(uint32(uintptr(unsafe.Pointer(&nrf.TIMER1.TASKS_CAPTURE[0]))))
	nrf.PPI.CHENSET.Set(1 << sfdCapturePPIChannel)
}

func (d *Driver) SetChannel(channel uint8) error {
	return configure(channel)
}

func (d *Driver) On() {
	if d.on {
		return
	}
	if !d.timerStarted {
		startSFDTimer()
		d.timerStarted = true
	}
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&d.buffer[0]))))
	nrf.RADIO.EVENTS_READY.Set(0)
	nrf.RADIO.TASKS_RXEN.Set(1)
	for nrf.RADIO.EVENTS_READY.Get() == 0 {
	}
	nrf.RADIO.EVENTS_END.Set(0)
	nrf.RADIO.EVENTS_CRCOK.Set(0)
	nrf.RADIO.EVENTS_ADDRESS.Set(0)
	nrf.RADIO.TASKS_START.Set(1)
	d.on = true
}

func (d *Driver) Off() {
	if !d.on {
		return
	}
	nrf.RADIO.TASKS_DISABLE.Set(1)
	for nrf.RADIO.STATE.Get() != nrf.RADIO_STATE_STATE_Disabled {
	}
	d.on = false
}

func (d *Driver) Prepare(buf []byte) error {
	if len(buf) > len(d.buffer) {
		return radio.ErrPayloadTooLong
	}
	copy(d.buffer[:], buf)
	return nil
}

func (d *Driver) Transmit() (bool, error) {
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&d.buffer[0]))))
	nrf.RADIO.EVENTS_READY.Set(0)
	nrf.RADIO.EVENTS_END.Set(0)
	nrf.RADIO.TASKS_TXEN.Set(1)
	for nrf.RADIO.EVENTS_READY.Get() == 0 {
	}
	nrf.RADIO.TASKS_START.Set(1)
	for nrf.RADIO.EVENTS_END.Get() == 0 {
	}
	nrf.RADIO.TASKS_DISABLE.Set(1)
	for nrf.RADIO.STATE.Get() != nrf.RADIO_STATE_STATE_Disabled {
	}
	d.on = false
	return true, nil
}

// ReceivingPacket reports whether the radio has detected the start of an
// incoming packet (the PHY address match) but has not yet validated it.
func (d *Driver) ReceivingPacket() bool {
	return d.on && nrf.RADIO.EVENTS_ADDRESS.Get() != 0 && nrf.RADIO.EVENTS_END.Get() == 0
}

// PendingPacket reports whether a complete packet is ready to be read.
func (d *Driver) PendingPacket() bool {
	return nrf.RADIO.EVENTS_END.Get() != 0
}

func (d *Driver) Read(dest []byte) (int, error) {
	n := int(d.buffer[0]) + 1
	if n > len(d.buffer) {
		n = len(d.buffer)
	}
	return copy(dest, d.buffer[:n]), nil
}

// ReadSFDTimer implements radio.SFDTimer, returning the TIMER1 tick
// PPI latched into CC[0] when the radio's address-match (SFD) event
// fired for the frame currently in the buffer.
func (d *Driver) ReadSFDTimer() (uint64, bool) {
	if nrf.RADIO.EVENTS_ADDRESS.Get() == 0 {
		return 0, false
	}
	return uint64(nrf.TIMER1.CC[0].Get()), true
}

// ChannelClear performs a clear-channel assessment (spec.md §4.4 step d).
func (d *Driver) ChannelClear() bool {
	nrf.RADIO.EVENTS_CCAIDLE.Set(0)
	nrf.RADIO.EVENTS_CCABUSY.Set(0)
	nrf.RADIO.TASKS_CCASTART.Set(1)
	for nrf.RADIO.EVENTS_CCAIDLE.Get() == 0 && nrf.RADIO.EVENTS_CCABUSY.Get() == 0 {
	}
	return nrf.RADIO.EVENTS_CCAIDLE.Get() != 0
}
