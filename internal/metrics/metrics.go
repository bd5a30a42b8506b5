// Package metrics holds the Prometheus collectors for snapshot runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// timespansComputed counts timespan computations.
	// Labels: period, outcome (computed, reused, error)
	timespansComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topicmap",
		Subsystem: "snapshot",
		Name:      "timespans_total",
		Help:      "Timespans computed, reused or failed",
	}, []string{"period", "outcome"})

	timespanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "topicmap",
		Subsystem: "snapshot",
		Name:      "timespan_duration_seconds",
		Help:      "Time to resolve, aggregate and store one timespan",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"period"})

	searchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "topicmap",
		Subsystem: "search",
		Name:      "retries_total",
		Help:      "Focus searches retried after a transient index failure",
	})

	// layoutRequests counts graph layout outcomes.
	// Labels: outcome (ok, skipped, unavailable)
	layoutRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topicmap",
		Subsystem: "graph",
		Name:      "layout_requests_total",
		Help:      "Graph layout requests by outcome",
	}, []string{"outcome"})

	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "topicmap",
		Subsystem: "graph",
		Name:      "exported_nodes",
		Help:      "Node count of exported graphs",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
)

// TimespanDone records one finished timespan computation.
func TimespanDone(period, outcome string, elapsed time.Duration) {
	timespansComputed.WithLabelValues(period, outcome).Inc()
	if outcome == "computed" {
		timespanDuration.WithLabelValues(period).Observe(elapsed.Seconds())
	}
}

// SearchRetry records a retried focus search batch.
func SearchRetry() {
	searchRetries.Inc()
}

// Layout records the outcome of a layout request.
func Layout(outcome string) {
	layoutRequests.WithLabelValues(outcome).Inc()
}

// GraphExported records the size of an exported graph.
func GraphExported(nodes int) {
	graphNodes.Observe(float64(nodes))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
