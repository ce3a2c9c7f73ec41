// Package metrics registers the Prometheus metrics for the assistant core:
// ingestion, retrieval, dispatch, tool invocation and model calls.
// All recording methods are safe on a nil *Metrics so callers that run
// without a registry (one-shot CLI commands, tests) need no guards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kbai"

// Outcome label values shared across counters.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds all core counters. Create one per registry with New.
type Metrics struct {
	// filesTotal counts processed files by kind (code, pdf) and outcome.
	filesTotal *prometheus.CounterVec

	// chunksAdded counts chunks newly written to the store.
	chunksAdded prometheus.Counter

	// retrievalTotal counts retrievals by outcome: ok, empty, error.
	retrievalTotal *prometheus.CounterVec

	// dispatchTotal counts routed questions by path: tool, rag.
	dispatchTotal *prometheus.CounterVec

	// toolCallsTotal counts tool invocations by action and outcome.
	toolCallsTotal *prometheus.CounterVec

	// modelCallsTotal counts chat model requests by phase.
	modelCallsTotal *prometheus.CounterVec
}

// New registers all core metrics against reg. promauto.With(reg) keeps each
// registry independent so tests can use a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files processed during ingestion, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),

		chunksAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_added_total",
			Help:      "Chunks newly added to the vector store.",
		}),

		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrievals_total",
			Help:      "Retrievals performed, partitioned by outcome.",
		}, []string{"outcome"}),

		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "dispatch_total",
			Help:      "Questions routed by the mode dispatcher, partitioned by path.",
		}, []string{"path"}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Tool invocations, partitioned by action and outcome.",
		}, []string{"action", "outcome"}),

		modelCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Chat model requests, partitioned by phase (rag, select, answer).",
		}, []string{"phase"}),
	}
}

// FileProcessed records one ingested file.
func (m *Metrics) FileProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(kind, outcome).Inc()
}

// ChunksAdded records n chunks written to the store.
func (m *Metrics) ChunksAdded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksAdded.Add(float64(n))
}

// Retrieval records one retrieval outcome.
func (m *Metrics) Retrieval(outcome string) {
	if m == nil {
		return
	}
	m.retrievalTotal.WithLabelValues(outcome).Inc()
}

// Dispatch records one routed question.
func (m *Metrics) Dispatch(path string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(path).Inc()
}

// ToolCall records one tool invocation.
func (m *Metrics) ToolCall(action, outcome string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(action, outcome).Inc()
}

// ModelCall records one chat model request.
func (m *Metrics) ModelCall(phase string) {
	if m == nil {
		return
	}
	m.modelCallsTotal.WithLabelValues(phase).Inc()
}
