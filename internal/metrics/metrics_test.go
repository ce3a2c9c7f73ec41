package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// record drives every recording method once.
func record(m *Metrics) {
	m.FileProcessed("pdf", OutcomeOK)
	m.ChunksAdded(3)
	m.ChunksAdded(0)
	m.Retrieval(OutcomeEmpty)
	m.Dispatch("rag")
	m.ToolCall("get_last_commit", OutcomeError)
	m.ModelCall("answer")
}

func TestNilMetricsRecordNothing(t *testing.T) {
	t.Parallel()
	var m *Metrics
	record(m)
}

func TestNew_Records(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	record(New(reg))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			got[mf.GetName()] += m.GetCounter().GetValue()
		}
	}

	tests := []struct {
		name string
		want float64
	}{
		{"kbai_ingest_files_total", 1},
		{"kbai_ingest_chunks_added_total", 3},
		{"kbai_rag_retrievals_total", 1},
		{"kbai_session_dispatch_total", 1},
		{"kbai_tools_invocations_total", 1},
		{"kbai_model_calls_total", 1},
	}
	for _, tc := range tests {
		if got[tc.name] != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, got[tc.name], tc.want)
		}
	}
}
