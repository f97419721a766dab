package queue

import "fmt"

// Addr is an IEEE 802.15.4 extended (EUI-64-style) link-layer address, the
// key neighbours and links are indexed by throughout this package and
// schedule. The teacher used a bare uint32 DeviceID (protocol/device.go);
// this widens it to the 8-byte address the wire format in package radio
// actually carries.
type Addr [8]byte

// Broadcast is the reserved address used for broadcast links and packets.
var Broadcast = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ebAddr is the reserved pseudo-address of the virtual EB neighbour that
// holds outgoing Enhanced Beacons, never seen on the air.
var ebAddr = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}

// IsBroadcast reports whether a is the broadcast address.
func (a Addr) IsBroadcast() bool { return a == Broadcast }

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x",
		a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
}
