// Command tschnode runs a single TSCH node that starts unassociated,
// scans for Enhanced Beacons, joins the network advertised by
// cmd/tschcoord, and then sends periodic keepalives to its time source.
// On a host build node.NewDriver returns an in-memory driver attached to
// no medium, so no beacon arrives and the scan loop does not end.
package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/ystepanoff/tsch/asn"
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
	self := queue.Addr{0, 0, 0, 0, 0, 0, 0, 2}

	neighbours := queue.NewTable(cfg.MaxNeighbours, cfg.QueueCapacity, config.MinBackoffExponent, config.MaxBackoffExponent, log)
	sched := schedule.NewManager(cfg.MaxSlotframes, neighbours, cfg.TXPriority, log)

	ctx := mac.New(cfg, mac.DefaultTiming(), self, node.NewDriver(), nil, sched, neighbours, log)
	ctx.OnInput = func(src queue.Addr, payload []byte, a asn.ASN, rssi int8) {
		log.Info("received data", zap.Stringer("src", src), zap.Int("len", len(payload)))
	}

	log.Info("node starting, scanning for a coordinator", zap.Stringer("addr", self))

	var wallClock int64 // ms
	for !ctx.Associated() {
		ctx.AssociationStep(wallClock / 1000)
		time.Sleep(10 * time.Millisecond)
		wallClock += 10
	}
	log.Info("associated", zap.Uint64("asn", ctx.ASN().Uint64()))

	fireAt := uint64(0)
	nextKeepalive := int64(0)
	for {
		if wallClock >= nextKeepalive {
			ctx.KeepaliveStep()
			nextKeepalive = wallClock + ctx.NextKeepalivePeriodMs()
		}
		fireAt = ctx.Step(fireAt)

		time.Sleep(time.Millisecond)
		wallClock++
	}
}
