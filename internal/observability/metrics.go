package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathway_engine",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pathway_engine",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	recomputes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathway_engine",
		Subsystem: "readiness",
		Name:      "recomputes_total",
		Help:      "Dashboard recomputations, by the surface that requested them.",
	}, []string{"surface"})

	liveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway_engine",
		Subsystem: "live",
		Name:      "connections",
		Help:      "Open live dashboard connections.",
	})

	feedPublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pathway_engine",
		Subsystem: "feed",
		Name:      "publish_failures_total",
		Help:      "Change notifications that could not be published.",
	})

	lastRollover = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pathway_engine",
		Subsystem: "rollover",
		Name:      "last_rollover_timestamp_seconds",
		Help:      "Unix timestamp of the most recent calendar day rollover broadcast.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		recomputes,
		liveConnections,
		feedPublishFailures,
		lastRollover,
	)
}

// RecordRequest counts a served request
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordRecompute counts a dashboard recomputation for surface
// ("dashboard", "pathway", "live").
func RecordRecompute(surface string) {
	recomputes.WithLabelValues(surface).Inc()
}

// LiveConnectionOpened increments the open connection gauge
func LiveConnectionOpened() {
	liveConnections.Inc()
}

// LiveConnectionClosed decrements the open connection gauge
func LiveConnectionClosed() {
	liveConnections.Dec()
}

// RecordPublishFailure counts a dropped change notification
func RecordPublishFailure() {
	feedPublishFailures.Inc()
}

// RecordRollover updates the rollover watermark
func RecordRollover(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastRollover.Set(float64(ts.Unix()))
}
