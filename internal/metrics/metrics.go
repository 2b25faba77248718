package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	PushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_pushes_total",
		Help: "Per-connection push attempts by result.",
	}, []string{"result"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Dispatched notifications by type and whether a live connection received them.",
	}, []string{"type", "live"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Registered push connections on this instance.",
	})

	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_evictions_total",
		Help: "Connections evicted by the liveness monitor.",
	})
)

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
