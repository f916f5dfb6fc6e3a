package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors. One instance is created
// at process start and shared by reference.
type Metrics struct {
	EventsReceived      *prometheus.CounterVec
	EventsDropped       *prometheus.CounterVec
	ActivitiesPublished *prometheus.CounterVec
	StoreOpDuration     *prometheus.HistogramVec
	Subscribers         prometheus.Gauge
	BroadcastDrops      *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the engine collectors on a registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_received_total",
			Help: "Business events received by the aggregator, by kind.",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_dropped_total",
			Help: "Events dropped before aggregation, by reason.",
		}, []string{"kind", "reason"}),
		ActivitiesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_published_total",
			Help: "Aggregated activities published to the feed, by kind.",
		}, []string{"kind"}),
		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activity_store_op_duration_seconds",
			Help:    "Latency of ephemeral store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "activity_feed_subscribers",
			Help: "Currently open live feed subscriptions.",
		}),
		BroadcastDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_broadcast_dropped_frames_total",
			Help: "Frames dropped for slow subscribers, by tenant.",
		}, []string{"tenant_id"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activity_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// NewDefault registers the collectors on the default registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
