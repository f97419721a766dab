package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func addrN(b byte) Addr {
	return Addr{0, 0, 0, 0, 0, 0, 0, b}
}

func TestTableAddIsIdempotent(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 8, 1, 7, nil)

	a := addrN(1)
	n1, err := tbl.Add(a)
	requireT.NoError(err)
	n2, err := tbl.Add(a)
	requireT.NoError(err)
	requireT.Same(n1, n2)
}

func TestVirtualNeighboursAlwaysPresent(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 8, 1, 7, nil)

	requireT.NotNil(tbl.Get(tbl.BroadcastAddr()))
	requireT.NotNil(tbl.Get(tbl.EBAddr()))
	requireT.True(tbl.Get(tbl.BroadcastAddr()).IsBroadcast)
}

func TestNeighbourTableFullFails(t *testing.T) {
	requireT := require.New(t)
	// capacity 2: broadcast + EB already fill it.
	tbl := NewTable(2, 8, 1, 7, nil)

	_, err := tbl.Add(addrN(1))
	requireT.ErrorIs(err, ErrNeighbourTableFull)
}

func TestUpdateTimeSourceReportsChange(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 8, 1, 7, nil)

	a := addrN(1)
	_, err := tbl.Add(a)
	requireT.NoError(err)

	changed, err := tbl.UpdateTimeSource(a)
	requireT.NoError(err)
	requireT.True(changed)
	requireT.True(tbl.Get(a).IsTimeSource)
	requireT.Same(tbl.Get(a), tbl.GetTimeSource())

	changed, err = tbl.UpdateTimeSource(a)
	requireT.NoError(err)
	requireT.False(changed)

	b := addrN(2)
	_, err = tbl.Add(b)
	requireT.NoError(err)
	changed, err = tbl.UpdateTimeSource(b)
	requireT.NoError(err)
	requireT.True(changed)
	requireT.False(tbl.Get(a).IsTimeSource)
	requireT.True(tbl.Get(b).IsTimeSource)
}

func TestEnqueueAndDequeueFIFO(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 7, nil)
	a := addrN(1)

	for i := 0; i < 4; i++ {
		p := NewPacket(a, []byte{byte(i)}, nil, nil)
		requireT.NoError(tbl.Enqueue(a, p))
	}
	// 5th enqueue should fail: ring capacity 4.
	requireT.ErrorIs(tbl.Enqueue(a, NewPacket(a, nil, nil, nil)), ErrQueueFull)

	n := tbl.Get(a)
	for i := 0; i < 4; i++ {
		p := n.PeekPacket(false)
		requireT.NotNil(p)
		requireT.Equal(byte(i), p.Payload[0])
		requireT.Same(p, n.DequeuePacket())
	}
	requireT.Nil(n.PeekPacket(false))
}

func TestSharedLinkBackoffBlocksUntilExpired(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 3, nil)
	a := addrN(1)

	requireT.NoError(tbl.Enqueue(a, NewPacket(a, nil, nil, nil)))
	n := tbl.Get(a)

	n.OnTXFailure(true, 3)
	requireT.Equal(2, n.backoff.exponent) // MinBE(1) + 1
	requireT.GreaterOrEqual(n.backoff.window, 1)
	requireT.LessOrEqual(n.backoff.window, (1<<2)-1+1)

	requireT.Nil(n.PeekPacket(true), "backoff window not yet expired")

	for !n.backoff.ready() {
		n.DecrementBackoff()
	}
	requireT.NotNil(n.PeekPacket(true))
}

func TestDedicatedLinkFailureDoesNotChangeBackoff(t *testing.T) {
	requireT := require.New(t)
	n := newNeighbour(addrN(1), 4, 1)
	before := n.backoff
	n.OnTXFailure(false, 7)
	requireT.Equal(before, n.backoff)
}

func TestOnTXSuccessResetsBackoffWhenSharedOrEmpty(t *testing.T) {
	requireT := require.New(t)
	n := newNeighbour(addrN(1), 4, 1)
	n.backoff.exponent = 5
	n.backoff.window = 9

	n.OnTXSuccess(false, 1) // dedicated link, queue empty -> resets
	requireT.Equal(1, n.backoff.exponent)
	requireT.Equal(0, n.backoff.window)
}

func TestGCReclaimsOnlyIdleNonSpecialNeighbours(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 7, nil)
	a, b := addrN(1), addrN(2)

	_, err := tbl.Add(a)
	requireT.NoError(err)
	_, err = tbl.Add(b)
	requireT.NoError(err)
	requireT.NoError(tbl.Enqueue(b, NewPacket(b, nil, nil, nil)))

	removed := tbl.GC()
	requireT.Equal(1, removed)
	requireT.Nil(tbl.Get(a))
	requireT.NotNil(tbl.Get(b))
	requireT.NotNil(tbl.Get(tbl.BroadcastAddr()))
	requireT.NotNil(tbl.Get(tbl.EBAddr()))
}

func TestEnqueueFailsWhileLockHeld(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 7, nil)
	a := addrN(1)

	held := true
	tbl.SetLockHeld(func() bool { return held })

	requireT.ErrorIs(tbl.Enqueue(a, NewPacket(a, nil, nil, nil)), ErrLockHeld)
	requireT.Nil(tbl.Get(a), "a rejected enqueue must not allocate the neighbour either")

	held = false
	requireT.NoError(tbl.Enqueue(a, NewPacket(a, nil, nil, nil)))
}

func TestGetUnicastPacketForAny(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 7, nil)
	a := addrN(1)
	requireT.NoError(tbl.Enqueue(a, NewPacket(a, nil, nil, nil)))

	n, p := tbl.GetUnicastPacketForAny(false)
	requireT.NotNil(n)
	requireT.NotNil(p)
	requireT.Equal(a, n.Addr)
}

func TestDecrementSharedBackoffsMatchesBroadcastRule(t *testing.T) {
	requireT := require.New(t)
	tbl := NewTable(8, 4, 1, 7, nil)
	a := addrN(1)
	_, err := tbl.Add(a)
	requireT.NoError(err)
	n := tbl.Get(a)
	n.backoff.window = 2

	tbl.DecrementSharedBackoffs(Broadcast)
	requireT.Equal(1, n.backoff.window)

	tbl.DecrementSharedBackoffs(Broadcast)
	requireT.Equal(0, n.backoff.window)
}

func TestRecordETXSmoothsTowardMeasured(t *testing.T) {
	requireT := require.New(t)
	n := newNeighbour(addrN(1), 4, 1)

	n.RecordETX(1)
	requireT.Equal(1.0, n.ETX())

	n.RecordETX(3)
	requireT.InDelta(0.9*1+0.1*3, n.ETX(), 1e-9)
}
