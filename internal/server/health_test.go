package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/54b3r/kbai-go/internal/version"
)

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func getReady(t *testing.T, pingers ...Pinger) (int, readyResponse) {
	t.Helper()
	s := newTestServer()
	s.pingers = pingers

	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version != version.Version {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantOK     []bool
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantOK:     []bool{},
		},
		{
			name:       "all healthy",
			pingers:    []Pinger{&fakePinger{name: "sqlite"}, &fakePinger{name: "ollama"}},
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantOK:     []bool{true, true},
		},
		{
			name:       "store down",
			pingers:    []Pinger{&fakePinger{name: "qdrant", err: down}, &fakePinger{name: "ollama"}},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     []bool{false, true},
		},
		{
			name:       "all down",
			pingers:    []Pinger{&fakePinger{name: "sqlite", err: down}, &fakePinger{name: "ollama", err: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     []bool{false, false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, resp := getReady(t, tc.pingers...)
			if status != tc.wantStatus || resp.Ready != tc.wantReady {
				t.Fatalf("status=%d ready=%v, want %d %v", status, resp.Ready, tc.wantStatus, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("want %d checks, got %d", len(tc.wantOK), len(resp.Checks))
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d: name %q, want %q (order must be kept)", i, c.Name, tc.pingers[i].Name())
				}
				if c.OK != tc.wantOK[i] || (c.Error == "") != c.OK {
					t.Errorf("check %q: ok=%v error=%q", c.Name, c.OK, c.Error)
				}
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	slow := 200 * time.Millisecond
	start := time.Now()
	status, resp := getReady(t,
		&fakePinger{name: "a", delay: slow},
		&fakePinger{name: "b", delay: slow},
		&fakePinger{name: "c", delay: slow},
	)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if elapsed := time.Since(start); elapsed >= 3*slow {
		t.Errorf("probes took %v, expected them to overlap", elapsed)
	}
	for _, c := range resp.Checks {
		if c.LatencyMS < slow.Milliseconds()/2 {
			t.Errorf("check %q: latency %dms too small", c.Name, c.LatencyMS)
		}
	}
}

type fakeStore struct{ err error }

func (f *fakeStore) Ping(context.Context) error { return f.err }

func TestStorePinger(t *testing.T) {
	t.Parallel()

	ok := NewStorePinger(&fakeStore{}, "sqlite")
	if ok.Name() != "sqlite" || ok.Ping(context.Background()) != nil {
		t.Errorf("healthy store: name=%q", ok.Name())
	}
	locked := errors.New("database is locked")
	err := NewStorePinger(&fakeStore{err: locked}, "sqlite").Ping(context.Background())
	if !errors.Is(err, locked) {
		t.Errorf("want wrapped store error, got %v", err)
	}
}

func TestHTTPPinger(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	if err := NewHTTPPinger("ollama", srv.URL+"/api/tags", srv.Client()).Ping(context.Background()); err != nil {
		t.Errorf("4xx counts as reachable, got %v", err)
	}
	if err := NewHTTPPinger("ollama", srv.URL+"/broken", nil).Ping(context.Background()); err == nil {
		t.Error("expected error for 5xx")
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", calls.Load())
	}
}
