package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"gig-payments/internal/metrics"

	"go.uber.org/zap"
)

// pushWriteTimeout bounds a single push so a stalled peer cannot hold the
// webhook delivery path for the full client write timeout.
const pushWriteTimeout = 5 * time.Second

// Push sends ev to every established connection of userID and returns how many
// sends succeeded. Sends run concurrently. A failing connection is evicted;
// the others are still attempted.
func Push(reg Registry, userID uint, ev Event, log *zap.Logger) int {
	var (
		delivered atomic.Int64
		wg        sync.WaitGroup
	)
	for _, c := range reg.ForUser(userID) {
		if !c.Established() {
			continue
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if err := c.SendWithin(ev, pushWriteTimeout); err != nil {
				metrics.PushesTotal.WithLabelValues("failed").Inc()
				log.Warn("push failed",
					zap.String("conn_id", c.ID),
					zap.Uint("user_id", userID),
					zap.String("type", ev.Type),
					zap.Error(err))
				Evict(reg, c)
				return
			}
			metrics.PushesTotal.WithLabelValues("delivered").Inc()
			delivered.Add(1)
		}(c)
	}
	wg.Wait()
	return int(delivered.Load())
}

// Evict closes the transport and drops the registry entry.
func Evict(reg Registry, c *Client) {
	_ = c.Close()
	reg.Unregister(c.ID)
	metrics.ActiveConnections.Set(float64(reg.Len()))
}
