// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedConnected         prometheus.Gauge
	FeedReconnectsTotal   prometheus.Counter
	NotificationsReceived prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram

	// Alert metrics
	AlertsEmitted   *prometheus.CounterVec
	AlertUSDValue   prometheus.Histogram
	NotifierResults *prometheus.CounterVec

	// Pricing metrics
	PriceCacheHits       *prometheus.CounterVec
	PriceCacheMisses     *prometheus.CounterVec
	PriceRefreshFailures *prometheus.CounterVec

	// Hub metrics
	HubSubscribers       prometheus.Gauge
	HubDroppedBroadcasts prometheus.Counter

	// Database metrics
	DBInsertErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mempool_sentinel"
	}

	return &Metrics{
		// Feed metrics
		FeedConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "Whether the pending-transaction feed is connected (1) or down (0)",
		}),
		FeedReconnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "notifications_received_total",
			Help:      "Total number of pending transaction notifications received",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Alert metrics
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "emitted_total",
			Help:      "Total number of alerts emitted by severity score",
		}, []string{"severity"}),
		AlertUSDValue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "usd_value",
			Help:      "USD value distribution of emitted alerts",
			Buckets:   []float64{100, 1000, 10000, 50000, 100000, 200000, 500000, 1000000, 10000000},
		}),
		NotifierResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total number of notification dispatches by channel and status",
		}, []string{"channel", "status"}),

		// Pricing metrics
		PriceCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Total number of price cache hits by asset class",
		}, []string{"asset"}),
		PriceCacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_misses_total",
			Help:      "Total number of price cache misses by asset class",
		}, []string{"asset"}),
		PriceRefreshFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "refresh_failures_total",
			Help:      "Total number of failed price source calls by asset class",
		}, []string{"asset"}),

		// Hub metrics
		HubSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Current number of connected live subscribers",
		}),
		HubDroppedBroadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_broadcasts_total",
			Help:      "Total number of broadcasts dropped on slow subscribers",
		}),

		// Database metrics
		DBInsertErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "insert_errors_total",
			Help:      "Total number of failed store inserts by store",
		}, []string{"store"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// SetFeedConnected updates the feed connection gauge.
func SetFeedConnected(connected bool) {
	if connected {
		DefaultMetrics.FeedConnected.Set(1)
	} else {
		DefaultMetrics.FeedConnected.Set(0)
	}
}

// RecordFeedReconnect increments the reconnect attempt counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnectsTotal.Inc()
}

// RecordNotification increments the received notification counter.
func RecordNotification() {
	DefaultMetrics.NotificationsReceived.Inc()
}

// RecordPipelineRun records one pipeline run with its terminal outcome.
func RecordPipelineRun(outcome string, seconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.PipelineDuration.Observe(seconds)
}

// RecordAlertEmitted records an emitted alert.
func RecordAlertEmitted(severity int, usdValue float64) {
	DefaultMetrics.AlertsEmitted.WithLabelValues(strconv.Itoa(severity)).Inc()
	DefaultMetrics.AlertUSDValue.Observe(usdValue)
}

// RecordNotifierDispatch records one notification dispatch outcome.
func RecordNotifierDispatch(channel string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.NotifierResults.WithLabelValues(channel, status).Inc()
}

// RecordPriceCacheHit increments the cache hit counter for an asset class.
func RecordPriceCacheHit(asset string) {
	DefaultMetrics.PriceCacheHits.WithLabelValues(asset).Inc()
}

// RecordPriceCacheMiss increments the cache miss counter for an asset class.
func RecordPriceCacheMiss(asset string) {
	DefaultMetrics.PriceCacheMisses.WithLabelValues(asset).Inc()
}

// RecordPriceRefreshFailure increments the refresh failure counter.
func RecordPriceRefreshFailure(asset string) {
	DefaultMetrics.PriceRefreshFailures.WithLabelValues(asset).Inc()
}

// SetHubSubscribers updates the subscriber gauge.
func SetHubSubscribers(n int) {
	DefaultMetrics.HubSubscribers.Set(float64(n))
}

// RecordDroppedBroadcast increments the dropped broadcast counter.
func RecordDroppedBroadcast() {
	DefaultMetrics.HubDroppedBroadcasts.Inc()
}

// RecordDBInsertError records a failed store insert.
func RecordDBInsertError(store string) {
	DefaultMetrics.DBInsertErrors.WithLabelValues(store).Inc()
}
