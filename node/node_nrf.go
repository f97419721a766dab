//go:build tinygo || baremetal

// This file is built only for embedded targets (using real radio hardware).
package node

import "github.com/ystepanoff/tsch/driver/nrf"

// NewDriver returns the nRF52840 hardware radio.Driver.
func NewDriver() *nrf.Driver {
	return nrf.New()
}
