package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kbai"

// labelHandler is the route-pattern label of the HTTP series.
const labelHandler = "handler"

// Outcome label values of kbai_ask_requests_total.
const (
	askOK      = "ok"
	askEmpty   = "empty"
	askTimeout = "timeout"
	askError   = "error"
)

// serverMetrics are the HTTP-side series. The core (ingestion, retrieval,
// tools) records its own through internal/metrics.
type serverMetrics struct {
	// askRequestsTotal counts /api/ask by answer path and outcome.
	askRequestsTotal *prometheus.CounterVec
	// askDurationSeconds measures from dispatch to the end of the stream.
	askDurationSeconds *prometheus.HistogramVec
	// askQueueSeconds measures time spent waiting for the previous question.
	askQueueSeconds prometheus.Histogram
	askActiveStreams prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Questions answered over HTTP, partitioned by path (tool, rag, none) and outcome.",
		}, []string{"path", "outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Time from dispatch to the end of the answer stream.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"path"}),

		askQueueSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "queue_seconds",
			Help:      "Time a question waited for the one before it to finish.",
			Buckets:   []float64{0.01, 0.1, 1, 5, 30, 120},
		}),

		askActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "active_streams",
			Help:      "Open /api/ask event streams, queued ones included.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
