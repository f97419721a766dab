package schedule

import "github.com/ystepanoff/tsch/queue"

// LinkType distinguishes ordinary data links from beacon links (spec.md
// §3).
type LinkType uint8

const (
	LinkNormal LinkType = iota
	LinkAdvertising
	LinkAdvertisingOnly
)

// LinkOptions is a bitset of the option flags a link may carry.
type LinkOptions uint8

const (
	OptionTX LinkOptions = 1 << iota
	OptionRX
	OptionShared
	OptionTimeKeeping
)

func (o LinkOptions) has(bit LinkOptions) bool { return o&bit != 0 }

// Link is a single timeslot entry within a slotframe (spec.md §3).
type Link struct {
	Handle        uint32
	Slotframe     uint16 // owning slotframe handle
	Timeslot      uint16
	ChannelOffset uint16
	Type          LinkType
	Options       LinkOptions
	Dest          queue.Addr
	UserData      any
}

func (l *Link) IsTX() bool           { return l.Options.has(OptionTX) }
func (l *Link) IsRX() bool           { return l.Options.has(OptionRX) }
func (l *Link) IsShared() bool       { return l.Options.has(OptionShared) }
func (l *Link) IsTimeKeeping() bool  { return l.Options.has(OptionTimeKeeping) }
func (l *Link) IsDedicatedTX() bool  { return l.IsTX() && !l.IsShared() }
