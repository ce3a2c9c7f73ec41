package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/tools"
)

// fakeModel records every request. Generate returns generateReply; Stream
// emits streamReply split into word fragments.
type fakeModel struct {
	generateReply string
	streamReply   string
	streamErr     error

	generateCalls [][]*schema.Message
	streamCalls   [][]*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.generateCalls = append(f.generateCalls, in)
	return schema.AssistantMessage(f.generateReply, nil), nil
}

func (f *fakeModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.streamCalls = append(f.streamCalls, in)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	var frags []*schema.Message
	for _, w := range strings.SplitAfter(f.streamReply, " ") {
		frags = append(frags, schema.AssistantMessage(w, nil))
	}
	return schema.StreamReaderFromArray(frags), nil
}

func (f *fakeModel) calls() int { return len(f.generateCalls) + len(f.streamCalls) }

// stubRetriever returns fixed chunks, or ErrEmptyRetrieval when there are none.
type stubRetriever struct {
	chunks []rag.Document
	err    error
}

func (s *stubRetriever) Retrieve(_ context.Context, question string, _ int) (*rag.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) == 0 {
		return &rag.Result{}, rag.ErrEmptyRetrieval
	}
	return &rag.Result{Chunks: s.chunks, Filter: rag.FilterFor(question)}, nil
}

func newAssistant(t *testing.T, m *fakeModel, r Retriever, reg *tools.Registry) *Assistant {
	t.Helper()
	a, err := New(&Config{
		ChatModel: m,
		Retriever: r,
		Tools:     reg,
		Language:  "English",
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAsk_EndToEnd(t *testing.T) {
	t.Parallel()
	m := &fakeModel{streamReply: "main prints hello world."}
	r := &stubRetriever{chunks: []rag.Document{
		{ID: "code_main.c_c0", Content: `int main() { printf("hello world"); }`, Source: "main.c", Kind: rag.KindCode},
	}}
	a := newAssistant(t, m, r, nil)

	var out strings.Builder
	res, err := a.Ask(context.Background(), "what does the code print?", &out)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.String() != "main prints hello world." {
		t.Errorf("streamed answer = %q", out.String())
	}
	if len(m.streamCalls) != 1 || len(m.generateCalls) != 0 {
		t.Fatalf("want exactly one streamed call, got stream=%d generate=%d", len(m.streamCalls), len(m.generateCalls))
	}
	msgs := m.streamCalls[0]
	if msgs[0].Role != schema.System || !strings.Contains(msgs[0].Content, "Always answer in English") {
		t.Errorf("system prompt = %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, `printf("hello world")`) || !strings.Contains(msgs[1].Content, "Question: what does the code print?") {
		t.Errorf("user prompt = %q", msgs[1].Content)
	}
	if cites := res.Citations(); len(cites) != 1 || cites[0].ChunkID != "code_main.c_c0" {
		t.Errorf("citations = %v", cites)
	}
}

func TestAsk_EmptyStoreSkipsModel(t *testing.T) {
	t.Parallel()
	m := &fakeModel{}
	a := newAssistant(t, m, &stubRetriever{}, nil)

	var out strings.Builder
	_, err := a.Ask(context.Background(), "anything?", &out)
	if !errors.Is(err, rag.ErrEmptyRetrieval) {
		t.Fatalf("want ErrEmptyRetrieval, got %v", err)
	}
	if m.calls() != 0 {
		t.Errorf("model called %d times on empty retrieval", m.calls())
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestAsk_StoreError(t *testing.T) {
	t.Parallel()
	a := newAssistant(t, &fakeModel{}, &stubRetriever{err: rag.ErrStoreUnavailable}, nil)
	_, err := a.Ask(context.Background(), "q", &strings.Builder{})
	if !errors.Is(err, rag.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestAsk_BudgetDropsTail(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 4000) // ~1000 tokens
	r := &stubRetriever{chunks: []rag.Document{{ID: "a", Content: big}, {ID: "b", Content: big}, {ID: "c", Content: big}}}
	m := &fakeModel{streamReply: "ok"}
	a, err := New(&Config{ChatModel: m, Retriever: r, MaxContextTokens: 1500})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := a.Ask(context.Background(), "q", &strings.Builder{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(res.Chunks) != 1 || res.Chunks[0].ID != "a" {
		t.Errorf("want only the top chunk kept, got %d", len(res.Chunks))
	}
}

func TestAsk_CancelledContext(t *testing.T) {
	t.Parallel()
	m := &fakeModel{streamReply: "one two three"}
	a := newAssistant(t, m, &stubRetriever{chunks: []rag.Document{{ID: "a", Content: "c"}}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out strings.Builder
	if _, err := a.Ask(ctx, "q", &out); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("fragments written after cancel: %q", out.String())
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{Retriever: &stubRetriever{}}); err == nil {
		t.Error("want error without model")
	}
	if _, err := New(&Config{ChatModel: &fakeModel{}}); err == nil {
		t.Error("want error without retriever")
	}
	a, err := New(&Config{ChatModel: &fakeModel{}, Retriever: &stubRetriever{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.language != DefaultLanguage || a.topK != rag.DefaultTopK {
		t.Errorf("defaults not applied: %+v", a)
	}
}
