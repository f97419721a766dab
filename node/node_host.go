//go:build !tinygo && !baremetal

// This file is built only for non-embedded targets (host-based testing
// and the cmd/ demo binaries), mirroring the teacher's
// constructors_host.go/constructors_nrf.go split one level down: the
// driver choice is the only thing that varies by build target, so it is
// isolated here rather than threaded through package mac.
package node

import "github.com/ystepanoff/tsch/driver/sim"

// NewDriver returns the host radio.Driver: an unconnected in-memory
// medium, exactly as meaningful as the teacher's host-side stub.Driver
// talking to nothing in particular (host builds exercise the MAC logic,
// not real over-the-air exchange with another process).
func NewDriver() *sim.Driver {
	return sim.New()
}
