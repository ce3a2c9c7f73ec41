// Package server exposes the assistant over HTTP: POST /api/ask streams an
// answer as Server-Sent Events, GET /api/tools lists the tool catalog, and
// the health, readiness and metrics endpoints support operation.
// The server is started by the `kbai serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tools"
)

// New constructs a Server around d. registry may be nil when no tools are
// configured.
func New(d dispatcher, registry *tools.Registry, cfg *Config) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("server: dispatcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		dispatcher: d,
		registry:   registry,
		cfg:        cfg,
		log:        log,
		pingers:    cfg.Pingers,
		metrics:    newServerMetrics(cfg.MetricsRegistry),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stop

	if cfg.APIKey == "" {
		log.Warn("server: KBAI_API_KEY not set, API authentication disabled")
	}
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protect(s.handleAsk))
	mux.Handle("GET /api/tools", protect(s.handleTools))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. Each request runs in a fresh session whose
// mode comes from the body; the answer is streamed as SSE data events,
// followed by a "sources" event for knowledge-base answers and a "done" event.
// Questions are answered one at a time.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode, _ := session.ParseMode(req.Mode)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	queued := time.Now()
	s.askMu.Lock()
	defer s.askMu.Unlock()
	s.metrics.askQueueSeconds.Observe(time.Since(queued).Seconds())

	start := time.Now()
	sw := &sseWriter{w: w, flusher: flusher}
	out, err := s.dispatcher.Answer(ctx, &session.Session{Mode: mode}, req.Question, sw)

	path := "none"
	if out != nil && out.Path != "" {
		path = string(out.Path)
	}
	outcome := askOK
	switch {
	case errors.Is(err, rag.ErrEmptyRetrieval):
		outcome = askEmpty
	case errors.Is(err, context.DeadlineExceeded):
		outcome = askTimeout
	case err != nil:
		outcome = askError
	}
	s.metrics.askRequestsTotal.WithLabelValues(path, outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn("ask failed", slog.Any("error", err))
		writeEvent(w, "error", err.Error())
		flusher.Flush()
		return
	}

	if out != nil && out.Path != "" {
		writeEvent(w, "path", string(out.Path))
	}
	if out != nil && out.Retrieval != nil {
		var sources []sourceEvent
		for _, c := range out.Retrieval.Citations() {
			sources = append(sources, sourceEvent{ChunkID: c.ChunkID, Filename: c.Filename, Page: c.Page})
		}
		if data, err := json.Marshal(sources); err == nil && len(sources) > 0 {
			writeEvent(w, "sources", string(data))
		}
	}
	writeEvent(w, "done", "[DONE]")
	flusher.Flush()
}

// handleTools handles GET /api/tools.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	resp := []toolResponse{}
	if s.registry != nil {
		for _, name := range s.registry.Names() {
			d, _ := s.registry.Lookup(name)
			tr := toolResponse{Name: d.Name, Description: d.Description, Params: []toolParam{}}
			for _, p := range d.Params {
				tr.Params = append(tr.Params, toolParam{
					Name:        p.Name,
					Type:        string(p.Type),
					Required:    p.Required,
					Default:     p.Default,
					Description: p.Desc,
				})
			}
			resp = append(resp, tr)
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// writeEvent emits one named SSE event with a single data line.
func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write sends p as one SSE event. Every line of p, empty ones included,
// becomes its own "data:" line; a client joins them with "\n", so newlines
// at fragment boundaries survive.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	var buf strings.Builder
	for _, line := range strings.Split(string(p), "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	if _, err = io.WriteString(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}
