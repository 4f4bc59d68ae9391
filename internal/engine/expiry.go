package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TUTULEMAN/Orderbook/internal/common"
)

// pruneSlack pushes the wakeup slightly past the session boundary so a
// coarse clock cannot fire the prune a tick early.
const pruneSlack = 100 * time.Millisecond

// pruneGoodForDayOrders cancels every good-for-day order once the session
// ends, then waits for the next boundary. It runs until the book shuts
// down.
//
// The id snapshot and the bulk cancel take the book lock separately so
// foreground traffic keeps flowing in between. An id filled or cancelled
// inside that window is simply skipped, since cancelling an unknown id is
// a no-op.
func (ob *Orderbook) pruneGoodForDayOrders() error {
	for {
		now := ob.clock.Now()
		timer := time.NewTimer(nextSessionEnd(now, ob.sessionEnd).Sub(now) + pruneSlack)

		select {
		case <-ob.t.Dying():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		ob.mu.Lock()
		var ids []common.OrderId
		for id, entry := range ob.orders {
			if entry.order.Type != common.GoodForDay {
				continue
			}
			ids = append(ids, id)
		}
		ob.mu.Unlock()

		if len(ids) == 0 {
			continue
		}
		ob.CancelOrders(ids)
		log.Info().Int("orders", len(ids)).Msg("pruned good-for-day orders")
	}
}
