// Package schedule manages the ordered collection of slotframes that
// answer "what must happen at Absolute Slot Number X?" and "when is the
// next wakeup?" (spec.md §4.3), grounded on
// original_source/core/net/mac/tsch/tsch-schedule.c.
package schedule

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/asn"
	"github.com/ystepanoff/tsch/queue"
)

// Manager owns every slotframe this node runs. All mutation acquires mu
// (standing in for the global lock of spec.md §5, enforced for real by
// package mac); the lookups LinkAtASN and NextActiveLink take mu as well,
// so unlike queue.Table there is no lock-free read path.
type Manager struct {
	mu sync.Mutex

	slotframes    map[uint16]*Slotframe
	order         []uint16 // slotframe handles, kept sorted for tie-break
	nextLinkHandle uint32

	maxSlotframes int
	neighbours    *queue.Table
	txPriority    bool

	// OnLinkRemoved, if set, is invoked with every link just removed so
	// the slot engine can clear a "scheduled next link" pointer that
	// referenced it (spec.md §4.3 remove_link).
	OnLinkRemoved func(*Link)

	log *zap.Logger
}

// NewManager creates an empty schedule manager bound to the neighbour
// table it must keep tx_links_count/dedicated_tx_links_count synchronised
// with (spec.md §3 invariant).
func NewManager(maxSlotframes int, neighbours *queue.Table, txPriority bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		slotframes:    make(map[uint16]*Slotframe),
		maxSlotframes: maxSlotframes,
		neighbours:    neighbours,
		txPriority:    txPriority,
		log:           log,
	}
}

// AddSlotframe installs a new slotframe. Fails if handle already exists or
// the configured slotframe budget is exhausted (spec.md §4.3).
func (m *Manager) AddSlotframe(handle uint16, size uint16) (*Slotframe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slotframes[handle]; ok {
		return nil, ErrSlotframeExists
	}
	if len(m.slotframes) >= m.maxSlotframes {
		return nil, ErrTooManySlotframes
	}

	sf := newSlotframe(handle, size)
	m.slotframes[handle] = sf
	m.order = append(m.order, handle)
	sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })

	m.log.Debug("slotframe added", zap.Uint16("handle", handle), zap.Uint16("size", size))
	return sf, nil
}

// RemoveSlotframe removes every link in sf first (so neighbour counters
// stay correct), then the slotframe itself (spec.md §4.3).
func (m *Manager) RemoveSlotframe(handle uint16) error {
	m.mu.Lock()
	sf, ok := m.slotframes[handle]
	m.mu.Unlock()
	if !ok {
		return ErrSlotframeNotFound
	}

	for _, l := range sf.Links() {
		if err := m.RemoveLink(handle, l.Handle); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slotframes, handle)
	m.order = lo.Filter(m.order, func(h uint16, _ int) bool { return h != handle })
	m.log.Debug("slotframe removed", zap.Uint16("handle", handle))
	return nil
}

// AddLink installs a link at the given timeslot, replacing any link
// already there (spec.md §4.3). On the TX option it increments the
// destination neighbour's tx_links_count, and — unless the link is
// shared — its dedicated_tx_links_count too (spec.md §3 invariant).
func (m *Manager) AddLink(sfHandle uint16, options LinkOptions, typ LinkType, dest queue.Addr, timeslot, channelOffset uint16) (*Link, error) {
	m.mu.Lock()
	sf, ok := m.slotframes[sfHandle]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSlotframeNotFound
	}
	existing := sf.LinkAt(timeslot)
	m.mu.Unlock()

	if existing != nil {
		if err := m.RemoveLink(sfHandle, existing.Handle); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLinkHandle++
	l := &Link{
		Handle:        m.nextLinkHandle,
		Slotframe:     sfHandle,
		Timeslot:      timeslot,
		ChannelOffset: channelOffset,
		Type:          typ,
		Options:       options,
		Dest:          dest,
	}
	sf.links[timeslot] = l

	if l.IsTX() && m.neighbours != nil {
		n, err := m.neighbours.Add(dest)
		if err == nil {
			n.TxLinksCount++
			if !l.IsShared() {
				n.DedicatedTxLinksCount++
			}
		}
	}

	m.log.Debug("link added",
		zap.Uint32("handle", l.Handle), zap.Uint16("slotframe", sfHandle),
		zap.Uint16("timeslot", timeslot))
	return l, nil
}

// RemoveLink removes a link and symmetrically decrements the neighbour
// counters AddLink incremented (spec.md §4.3). If OnLinkRemoved is set, it
// is invoked so the slot engine can drop a dangling "scheduled next link"
// pointer.
func (m *Manager) RemoveLink(sfHandle uint16, linkHandle uint32) error {
	m.mu.Lock()
	sf, ok := m.slotframes[sfHandle]
	if !ok {
		m.mu.Unlock()
		return ErrSlotframeNotFound
	}

	var found *Link
	var timeslot uint16
	for ts, l := range sf.links {
		if l.Handle == linkHandle {
			found = l
			timeslot = ts
			break
		}
	}
	if found == nil {
		m.mu.Unlock()
		return ErrLinkNotFound
	}
	delete(sf.links, timeslot)
	m.mu.Unlock()

	if found.IsTX() && m.neighbours != nil {
		if n := m.neighbours.Get(found.Dest); n != nil {
			if n.TxLinksCount > 0 {
				n.TxLinksCount--
			}
			if !found.IsShared() && n.DedicatedTxLinksCount > 0 {
				n.DedicatedTxLinksCount--
			}
		}
	}

	if m.OnLinkRemoved != nil {
		m.OnLinkRemoved(found)
	}

	m.log.Debug("link removed", zap.Uint32("handle", linkHandle), zap.Uint16("slotframe", sfHandle))
	return nil
}

// LinkAtASN finds the link whose timeslot equals asn mod slotframe.size,
// across every slotframe (spec.md §4.3 get_link_from_asn). When two
// slotframes both have a link at the current absolute slot, ties are
// broken by preferring a TX-bearing link (if m.txPriority) or otherwise
// the lowest slotframe handle (spec.md §8 scenario 5).
func (m *Manager) LinkAtASN(a asn.ASN) *Link {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Link
	for _, handle := range m.order { // m.order is kept sorted ascending
		sf := m.slotframes[handle]
		l := sf.LinkAt(sf.timeslotFor(a))
		if l == nil {
			continue
		}
		if best == nil {
			best = l
			continue
		}
		if m.txPriority && l.IsTX() && !best.IsTX() {
			best = l
		}
		// Otherwise keep `best`: m.order is ascending, so the
		// already-chosen link already has the lowest handle.
	}
	return best
}

// NextActiveLink scans every slotframe for the link with the smallest
// forward distance from asn (spec.md §4.3 get_next_active_link). A
// distance of 0 (the link is at the current slot) is treated as a full
// cycle away, since this answers "when is the next wakeup", not "what is
// active now". Returns nil and 0 if no slotframe has any link installed.
func (m *Manager) NextActiveLink(a asn.ASN) (*Link, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Link
	var bestDist uint64

	for _, handle := range m.order {
		sf := m.slotframes[handle]
		size := uint64(sf.SizeSlots())
		if size == 0 {
			continue
		}
		cur := uint64(sf.timeslotFor(a))
		for ts, l := range sf.links {
			dist := (uint64(ts) - cur + size) % size
			if dist == 0 {
				dist = size
			}
			if best == nil || dist < bestDist {
				best, bestDist = l, dist
			}
		}
	}
	return best, bestDist
}
