package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gig-payments/internal/metrics"

	"go.uber.org/zap"
)

// Pings are tiny; a peer that cannot take one within this deadline is treated
// as gone.
const pingWriteTimeout = 2 * time.Second

const defaultPingPeriod = 30 * time.Second

// Monitor pings every registered connection each period and evicts those whose
// last pong is older than multiple*period.
type Monitor struct {
	registry Registry
	period   time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewMonitor(reg Registry, period time.Duration, multiple int, log *zap.Logger) *Monitor {
	if period <= 0 {
		period = defaultPingPeriod
	}
	if multiple < 1 {
		multiple = 1
	}
	return &Monitor{
		registry: reg,
		period:   period,
		timeout:  period * time.Duration(multiple),
		now:      time.Now,
		log:      log.With(zap.String("component", "liveness")),
	}
}

func (m *Monitor) Timeout() time.Duration { return m.timeout }

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.log.Info("evicted stale connections", zap.Int("count", n), zap.Int("remaining", m.registry.Len()))
			}
		}
	}
}

// Sweep runs one liveness pass and returns the number of evicted connections.
// Pings go out concurrently so one stalled peer cannot hold up the others.
func (m *Monitor) Sweep(now time.Time) int {
	var (
		evicted atomic.Int64
		wg      sync.WaitGroup
	)
	evict := func(c *Client) {
		Evict(m.registry, c)
		metrics.EvictionsTotal.Inc()
		evicted.Add(1)
	}

	for _, c := range m.registry.Snapshot() {
		if now.Sub(c.LastSeen()) > m.timeout {
			m.log.Debug("liveness timeout",
				zap.String("conn_id", c.ID),
				zap.Uint("user_id", c.UserID),
				zap.Time("last_seen", c.LastSeen()))
			evict(c)
			continue
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if err := c.SendWithin(PingEvent(now), pingWriteTimeout); err != nil {
				m.log.Debug("ping failed", zap.String("conn_id", c.ID), zap.Error(err))
				evict(c)
			}
		}(c)
	}
	wg.Wait()
	return int(evicted.Load())
}
