// Command tschcoord runs a single TSCH node as the network coordinator:
// ASN 0, join priority 0, advertising Enhanced Beacons on a dedicated
// slotframe so joiner nodes (cmd/tschnode) can associate. On a host build
// node.NewDriver returns an in-memory driver attached to no medium, so the
// beacons reach no other process.
package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/config"
	"github.com/ystepanoff/tsch/mac"
	"github.com/ystepanoff/tsch/node"
	"github.com/ystepanoff/tsch/queue"
	"github.com/ystepanoff/tsch/schedule"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Default()
	self := queue.Addr{0, 0, 0, 0, 0, 0, 0, 1}

	neighbours := queue.NewTable(cfg.MaxNeighbours, cfg.QueueCapacity, config.MinBackoffExponent, config.MaxBackoffExponent, log)
	sched := schedule.NewManager(cfg.MaxSlotframes, neighbours, cfg.TXPriority, log)

	sf, err := sched.AddSlotframe(0, 101)
	if err != nil {
		log.Fatal("add slotframe", zap.Error(err))
	}
	eb := neighbours.EBAddr()
	if _, err := sched.AddLink(sf.Handle, schedule.OptionTX|schedule.OptionShared, schedule.LinkAdvertising, eb, 0, 0); err != nil {
		log.Fatal("add advertising link", zap.Error(err))
	}

	ctx := mac.New(cfg, mac.DefaultTiming(), self, node.NewDriver(), nil, sched, neighbours, log)
	ctx.BecomeCoordinator()

	log.Info("coordinator starting", zap.Stringer("addr", self))

	var wallClock int64 // ms, advanced once per 1ms loop iteration
	nextBeacon := int64(0)
	fireAt := uint64(0)
	for {
		if wallClock >= nextBeacon {
			period := ctx.NextEBPeriodMs(wallClock / 1000)
			if ctx.BeaconStep() {
				log.Info("beacon enqueued", zap.Int64("period_ms", period))
			}
			nextBeacon = wallClock + period
		}
		fireAt = ctx.Step(fireAt)

		time.Sleep(time.Millisecond)
		wallClock++
	}
}
