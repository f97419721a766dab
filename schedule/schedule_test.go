package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/tsch/asn"
	"github.com/ystepanoff/tsch/queue"
)

func addrN(b byte) queue.Addr { return queue.Addr{0, 0, 0, 0, 0, 0, 0, b} }

func TestAddSlotframeRejectsDuplicateHandle(t *testing.T) {
	requireT := require.New(t)
	m := NewManager(4, nil, true, nil)

	_, err := m.AddSlotframe(20, 5)
	requireT.NoError(err)
	_, err = m.AddSlotframe(20, 7)
	requireT.ErrorIs(err, ErrSlotframeExists)
}

func TestAddLinkReplacesExistingAtTimeslot(t *testing.T) {
	requireT := require.New(t)
	tbl := queue.NewTable(8, 8, 1, 7, nil)
	m := NewManager(4, tbl, true, nil)
	_, err := m.AddSlotframe(20, 5)
	requireT.NoError(err)

	a := addrN(1)
	l1, err := m.AddLink(20, OptionTX, LinkNormal, a, 1, 0)
	requireT.NoError(err)
	requireT.Equal(1, tbl.Get(a).TxLinksCount)

	b := addrN(2)
	l2, err := m.AddLink(20, OptionTX, LinkNormal, b, 1, 0)
	requireT.NoError(err)
	requireT.NotEqual(l1.Handle, l2.Handle)
	requireT.Equal(0, tbl.Get(a).TxLinksCount, "replaced link must decrement old destination's counter")
	requireT.Equal(1, tbl.Get(b).TxLinksCount)
}

func TestLinkCountersRoundTripOnAddRemove(t *testing.T) {
	requireT := require.New(t)
	tbl := queue.NewTable(8, 8, 1, 7, nil)
	m := NewManager(4, tbl, true, nil)
	_, err := m.AddSlotframe(20, 5)
	requireT.NoError(err)

	a := addrN(1)
	l, err := m.AddLink(20, OptionTX, LinkNormal, a, 1, 0)
	requireT.NoError(err)
	requireT.Equal(1, tbl.Get(a).TxLinksCount)
	requireT.Equal(1, tbl.Get(a).DedicatedTxLinksCount)

	requireT.NoError(m.RemoveLink(20, l.Handle))
	requireT.Equal(0, tbl.Get(a).TxLinksCount)
	requireT.Equal(0, tbl.Get(a).DedicatedTxLinksCount)
	requireT.True(tbl.Get(a).QueueEmpty())
}

func TestSharedTXLinkDoesNotIncrementDedicatedCount(t *testing.T) {
	requireT := require.New(t)
	tbl := queue.NewTable(8, 8, 1, 7, nil)
	m := NewManager(4, tbl, true, nil)
	_, err := m.AddSlotframe(0, 1)
	requireT.NoError(err)

	a := tbl.BroadcastAddr()
	_, err = m.AddLink(0, OptionTX|OptionShared, LinkAdvertising, a, 0, 0)
	requireT.NoError(err)
	requireT.Equal(1, tbl.Get(a).TxLinksCount)
	requireT.Equal(0, tbl.Get(a).DedicatedTxLinksCount)
}

func TestRemoveLinkNotifiesCurrentLinkClear(t *testing.T) {
	requireT := require.New(t)
	m := NewManager(4, nil, true, nil)
	_, err := m.AddSlotframe(20, 5)
	requireT.NoError(err)

	l, err := m.AddLink(20, OptionRX, LinkNormal, queue.Addr{}, 1, 0)
	requireT.NoError(err)

	var cleared *Link
	m.OnLinkRemoved = func(removed *Link) { cleared = removed }

	requireT.NoError(m.RemoveLink(20, l.Handle))
	requireT.Same(l, cleared)
}

func TestASNTieBreakTXPriority(t *testing.T) {
	requireT := require.New(t)
	tbl := queue.NewTable(8, 8, 1, 7, nil)

	build := func(txPriority bool) *Manager {
		m := NewManager(4, tbl, txPriority, nil)
		_, err := m.AddSlotframe(20, 5)
		requireT.NoError(err)
		_, err = m.AddSlotframe(21, 5)
		requireT.NoError(err)
		_, err = m.AddLink(21, OptionRX, LinkNormal, queue.Addr{}, 0, 0)
		requireT.NoError(err)
		_, err = m.AddLink(20, OptionTX, LinkNormal, addrN(9), 0, 0)
		requireT.NoError(err)
		return m
	}

	withPriority := build(true)
	l := withPriority.LinkAtASN(asn.New(0))
	requireT.NotNil(l)
	requireT.True(l.IsTX(), "TX-bearing link must win when prioritisation is enabled")

	withoutPriority := build(false)
	l = withoutPriority.LinkAtASN(asn.New(0))
	requireT.NotNil(l)
	requireT.Equal(uint16(20), l.Slotframe, "lowest slotframe handle must win when prioritisation is disabled")
}

func TestGetLinkFromASNReturnsNilWhenNothingScheduled(t *testing.T) {
	requireT := require.New(t)
	m := NewManager(4, nil, true, nil)
	_, err := m.AddSlotframe(0, 5)
	requireT.NoError(err)
	requireT.Nil(m.LinkAtASN(asn.New(3)))
}

func TestNextActiveLinkPicksSmallestForwardDistance(t *testing.T) {
	requireT := require.New(t)
	m := NewManager(4, nil, true, nil)
	_, err := m.AddSlotframe(0, 10)
	requireT.NoError(err)

	_, err = m.AddLink(0, OptionRX, LinkNormal, queue.Addr{}, 7, 0)
	requireT.NoError(err)
	_, err = m.AddLink(0, OptionRX, LinkNormal, queue.Addr{}, 2, 0)
	requireT.NoError(err)

	l, dist := m.NextActiveLink(asn.New(5))
	requireT.NotNil(l)
	requireT.Equal(uint16(7), l.Timeslot)
	requireT.Equal(uint64(2), dist)
}

func TestNextActiveLinkWrapsFullCycleWhenAtCurrentSlot(t *testing.T) {
	requireT := require.New(t)
	m := NewManager(4, nil, true, nil)
	_, err := m.AddSlotframe(0, 5)
	requireT.NoError(err)
	_, err = m.AddLink(0, OptionRX, LinkNormal, queue.Addr{}, 3, 0)
	requireT.NoError(err)

	l, dist := m.NextActiveLink(asn.New(3))
	requireT.NotNil(l)
	requireT.Equal(uint64(5), dist)
}
