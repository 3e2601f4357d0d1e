package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradepoll/delivery-service/internal/ratelimiter"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	Dispatched      *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	DispatchLatency *prometheus.HistogramVec

	QueueDepthAnnounce prometheus.Gauge
	QueueDepthSend     prometheus.Gauge
	PendingSelections  prometheus.Gauge

	TokensIssued   prometheus.Counter
	TokensRedeemed prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_dispatched_total",
			Help: "Total number of successfully dispatched outbound jobs.",
		}, []string{"queue"}),

		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_dropped_total",
			Help: "Total number of outbound jobs dropped after a failed dispatch.",
		}, []string{"queue"}),

		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbound_dispatch_seconds",
			Help:    "Bot API round-trip latency per successful dispatch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),

		QueueDepthAnnounce: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_announce",
			Help: "Current number of items in the announce queue.",
		}),
		QueueDepthSend: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_send",
			Help: "Current number of items in the send queue.",
		}),
		PendingSelections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pending_selections",
			Help: "Current number of confirmed selections awaiting delivery.",
		}),

		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upload_tokens_issued_total",
			Help: "Total number of upload tokens minted.",
		}),
		TokensRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upload_tokens_redeemed_total",
			Help: "Total number of upload tokens redeemed exactly once.",
		}),
	}

	reg.MustRegister(
		m.Dispatched,
		m.Dropped,
		m.DispatchLatency,
		m.QueueDepthAnnounce,
		m.QueueDepthSend,
		m.PendingSelections,
		m.TokensIssued,
		m.TokensRedeemed,
	)

	return m
}

// DrainerHooks returns the metric callbacks expected by drainer.MetricHooks.
// Centralises the prometheus observation calls so drainer.go stays import-free.
func (m *Metrics) DrainerHooks() (
	onDispatched func(ratelimiter.Kind, time.Duration),
	onFailed func(ratelimiter.Kind),
) {
	onDispatched = func(k ratelimiter.Kind, latency time.Duration) {
		m.Dispatched.WithLabelValues(string(k)).Inc()
		m.DispatchLatency.WithLabelValues(string(k)).Observe(latency.Seconds())
	}
	onFailed = func(k ratelimiter.Kind) {
		m.Dropped.WithLabelValues(string(k)).Inc()
	}
	return
}
