package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tools"
)

// ---------------------------------------------------------------------------
// Fake dispatcher for ask handler tests
// ---------------------------------------------------------------------------

// fakeDispatcher implements the dispatcher interface for tests.
// It writes a fixed response and returns a configurable outcome.
type fakeDispatcher struct {
	// response is written verbatim to the writer on each Answer call.
	response string
	// outcome is returned with the response or alongside err.
	outcome *session.Outcome
	// err is returned as the error value.
	err error
	// gotMode records the session mode of the last call.
	gotMode session.Mode
	// gotInput records the last question.
	gotInput string
}

func (f *fakeDispatcher) Answer(_ context.Context, s *session.Session, input string, w io.Writer) (*session.Outcome, error) {
	f.gotMode, f.gotInput = s.Mode, input
	if f.err != nil {
		return f.outcome, f.err
	}
	_, _ = fmt.Fprint(w, f.response)
	return f.outcome, nil
}

// newTestServer builds a bare *Server for handler-level tests.
func newTestServer() *Server {
	return newAskTestServer(&fakeDispatcher{})
}

// newAskTestServer builds a *Server wired with the given dispatcher fake.
func newAskTestServer(d dispatcher) *Server {
	return &Server{
		dispatcher: d,
		cfg:        &Config{Port: 8080, AskTimeout: time.Minute},
		log:        slog.Default(),
		metrics:    newServerMetrics(prometheus.NewRegistry()),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func postAsk(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleAsk(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /api/ask: validation error paths
// ---------------------------------------------------------------------------

func TestHandleAsk_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `not-json`},
		{"missing question", `{"mode":"rag"}`},
		{"blank question", `{"question":"   "}`},
		{"unknown mode", `{"question":"hi","mode":"yolo"}`},
		{"question too long", `{"question":"` + strings.Repeat("a", 4001) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := &fakeDispatcher{}
			w := postAsk(newAskTestServer(d), tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if d.gotInput != "" {
				t.Errorf("dispatcher should not be called, got input %q", d.gotInput)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/ask: happy path (fake dispatcher, SSE response)
// ---------------------------------------------------------------------------

func TestHandleAsk_RAGAnswerWithSources(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{
		response: "The manual says\nrestart the daemon.",
		outcome: &session.Outcome{
			Path: session.PathRAG,
			Retrieval: &rag.Result{Chunks: []rag.Document{
				{ID: "manual.pdf_chunk_3", Source: "manual.pdf", Location: "4-5"},
			}},
		},
	}
	w := postAsk(newAskTestServer(d), `{"question":"  how do I restart?  ","mode":"rag"}`)
	body := w.Body.String()

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if d.gotMode != session.ModeRAG || d.gotInput != "how do I restart?" {
		t.Errorf("dispatcher got mode %q input %q", d.gotMode, d.gotInput)
	}
	for _, want := range []string{
		"data: The manual says\ndata: restart the daemon.\n\n",
		"event: path\ndata: rag\n\n",
		`event: sources` + "\n" + `data: [{"chunk_id":"manual.pdf_chunk_3","filename":"manual.pdf","page":"4-5"}]`,
		"event: done\ndata: [DONE]",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\n--- body ---\n%s", want, body)
		}
	}
}

func TestHandleAsk_DefaultModeIsAuto(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{response: "ok", outcome: &session.Outcome{Path: session.PathTool}}
	w := postAsk(newAskTestServer(d), `{"question":"list my repos"}`)

	if d.gotMode != session.ModeAuto {
		t.Errorf("mode: got %q, want auto", d.gotMode)
	}
	if strings.Contains(w.Body.String(), "event: sources") {
		t.Errorf("tool answers carry no sources: %s", w.Body.String())
	}
}

// TestHandleAsk_DispatchError verifies that when the dispatcher fails the
// SSE stream includes an "error" event and the response is still 200
// (SSE errors are delivered in-band, not via HTTP status).
func TestHandleAsk_DispatchError(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{err: fmt.Errorf("model unavailable")}
	s := newAskTestServer(d)
	w := postAsk(s, `{"question":"anything"}`)

	body := w.Body.String()
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(body, "event: error\ndata: model unavailable") {
		t.Errorf("expected error event in body, got: %s", body)
	}
	if strings.Contains(body, "event: done") {
		t.Errorf("no done event after an error: %s", body)
	}
}

// ---------------------------------------------------------------------------
// GET /api/tools
// ---------------------------------------------------------------------------

func TestHandleTools(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, tools.Args) (*tools.Result, error) { return &tools.Result{}, nil }
	reg, err := tools.NewRegistry(tools.Descriptor{
		Name:        "list_open_issues",
		Description: "List open issues.",
		Params:      []tools.Param{{Name: "repo_name", Type: tools.String, Required: true, Desc: "owner/repo"}},
		Call:        noop,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	s := newTestServer()
	s.registry = reg
	w := httptest.NewRecorder()
	s.handleTools(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	var got []toolResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "list_open_issues" {
		t.Fatalf("got %+v", got)
	}
	p := got[0].Params
	if len(p) != 1 || p[0].Name != "repo_name" || p[0].Type != "string" || !p[0].Required || p[0].Description != "owner/repo" {
		t.Errorf("params = %+v", p)
	}
}

func TestHandleTools_NoRegistry(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleTools(w, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("want empty JSON array, got %q", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Full handler chain: auth, rate limit, logging, instrumentation
// ---------------------------------------------------------------------------

func TestNew_RoutesThroughMiddleware(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	d := &fakeDispatcher{response: "hello", outcome: &session.Outcome{Path: session.PathRAG}}
	s, err := New(d, nil, &Config{
		APIKey:          "secret",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	h := s.Handler()

	// Unauthenticated ask is rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// Authenticated ask streams through the logging wrapper.
	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "data: hello") {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}

	// Health needs no token.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, mf := range mfs {
		if mf.GetName() != "kbai_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var handler, code string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case labelHandler:
					handler = lp.GetValue()
				case "code":
					code = lp.GetValue()
				}
			}
			seen[handler+" "+code] = true
		}
	}
	for _, want := range []string{"POST /api/ask 401", "POST /api/ask 200", "GET /api/health 200"} {
		if !seen[want] {
			t.Errorf("missing http request series %q (have %v)", want, seen)
		}
	}
}

func TestNew_RequiresDispatcher(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
}
