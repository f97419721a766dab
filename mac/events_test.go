package mac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ystepanoff/tsch/driver/sim"
)

func TestCorrectASNDriftAppliesFullMagnitudeInOneShot(t *testing.T) {
	requireT := require.New(t)
	cfg := testConfig()
	node, _ := newTestNode(t, cfg, addrN(1), sim.New(), true, true)

	node.currentASN.Store(100)
	node.correctASNDrift(150)
	requireT.Equal(uint64(150), node.currentASN.Load(), "a 50-slot divergence must resync on a single EB, not over 50 separate corrections")

	node.currentASN.Store(150)
	node.correctASNDrift(97)
	requireT.Equal(uint64(97), node.currentASN.Load())
}
