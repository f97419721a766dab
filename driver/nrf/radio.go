//go:build tinygo || baremetal

// Package nrf adapts the nRF52840 RADIO peripheral to the radio.Driver
// contract (spec.md §6), configured for IEEE 802.15.4 mode instead of
// the teacher's proprietary Nordic 1Mbit shockburst framing — the same
// register-level approach (mode/frequency/PCNF/CRC setup, PACKETPTR +
// task/event busy-wait) generalised to the channel range and CRC32
// footer TSCH's wire format uses.
package nrf

import (
	"device/nrf"

	"github.com/pkg/errors"

	"github.com/ystepanoff/tsch/radio"
)

// ErrInvalidChannel is returned for a channel number outside the
// IEEE 802.15.4 2.4GHz page (11..26).
var ErrInvalidChannel = errors.New("nrf: channel out of range 11..26")

// StartHFCLK starts the high-frequency clock required by the radio.
func StartHFCLK() {
	nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_HFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() == 0 {
	}
}

// channelToFrequency maps an IEEE 802.15.4 channel number (11..26) to
// the RADIO.FREQUENCY register offset above 2400MHz.
func channelToFrequency(channel uint8) (uint32, error) {
	if channel < 11 || channel > 26 {
		return 0, ErrInvalidChannel
	}
	return uint32(5 * (int(channel) - 10)), nil
}

// configure sets up 802.15.4 mode, TX power, and frame layout (hardware
// CRC disabled) on the given channel (spec.md §4.1: channel selection feeds directly into
// this register write on every hop).
func configure(channel uint8) error {
	freq, err := channelToFrequency(channel)
	if err != nil {
		return err
	}

	nrf.RADIO.POWER.Set(1)
	nrf.RADIO.MODE.Set(nrf.RADIO_MODE_MODE_Ieee802154_250Kbit)
	nrf.RADIO.TXPOWER.Set(nrf.RADIO_TXPOWER_TXPOWER_0dBm)
	nrf.RADIO.FREQUENCY.Set(freq)

	// 802.15.4 PHY framing: 8-bit length field, no S0/S1.
	nrf.RADIO.PCNF0.Set(
		(8 << nrf.RADIO_PCNF0_LFLEN_Pos) |
			(0 << nrf.RADIO_PCNF0_S0LEN_Pos) |
			(0 << nrf.RADIO_PCNF0_S1LEN_Pos))
	nrf.RADIO.PCNF1.Set(
		(uint32(radio.MaxFrameSize) << nrf.RADIO_PCNF1_MAXLEN_Pos) |
			(0 << nrf.RADIO_PCNF1_STATLEN_Pos) |
			(nrf.RADIO_PCNF1_ENDIAN_Little << nrf.RADIO_PCNF1_ENDIAN_Pos))

	// The MAC's own CRC32 (radio/frame.go) is authoritative; the hardware
	// CRC is left disabled so Decode sees exactly the bytes it wrote.
	nrf.RADIO.CRCCNF.Set(0)

	return nil
}
