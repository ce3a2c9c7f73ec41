package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tools"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds one /api/ask request including the streamed answer.
	// Defaults to 5 minutes.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's own metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// dispatcher is the interface handleAsk calls to answer one question.
// *session.Dispatcher satisfies it; tests inject a fake.
type dispatcher interface {
	// Answer routes question for s and streams the answer to w.
	Answer(ctx context.Context, s *session.Session, question string, w io.Writer) (*session.Outcome, error)
}

// Server is the HTTP front end of the assistant.
type Server struct {
	// dispatcher answers questions.
	dispatcher dispatcher
	// registry lists the tools for GET /api/tools. May be nil.
	registry *tools.Registry
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// validate checks decoded request bodies.
	validate *validator.Validate
	// askMu serialises questions: the chat model and store are shared.
	askMu sync.Mutex
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's question or a mode command.
	Question string `json:"question" validate:"required,max=4000"`
	// Mode is auto, tool or rag. Empty means auto.
	Mode string `json:"mode" validate:"omitempty,oneof=auto tool rag"`
}

// sourceEvent is one citation in the "sources" SSE event.
type sourceEvent struct {
	ChunkID  string `json:"chunk_id"`
	Filename string `json:"filename"`
	Page     string `json:"page,omitempty"`
}

// toolParam describes one tool parameter in GET /api/tools.
type toolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// toolResponse describes one tool in GET /api/tools.
type toolResponse struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []toolParam `json:"params"`
}
