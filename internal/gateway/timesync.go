package gateway

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"blindtest/internal/protocol"
)

// TimeSync broadcasts the server clock to every connection on a fixed
// interval. Clients render countdowns against these samples plus the
// absolute timestamps in round_start, so drift stays bounded by the
// interval.
type TimeSync struct {
	hub      *Hub
	clock    clockwork.Clock
	interval time.Duration
}

func NewTimeSync(hub *Hub, clock clockwork.Clock, interval time.Duration) *TimeSync {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &TimeSync{hub: hub, clock: clock, interval: interval}
}

// Run ticks until the context ends.
func (t *TimeSync) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Msg("time sync started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("time sync stopped")
			return
		case <-ticker.Chan():
			t.hub.BroadcastAll(protocol.NewEvent(protocol.EventTimeSync, protocol.TimeSyncPayload{
				ServerTime: t.clock.Now().UnixMilli(),
			}))
		}
	}
}
