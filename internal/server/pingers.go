package server

import (
	"context"
	"fmt"
	"net/http"
)

// storeProbe is the reachability check every vector store exposes.
type storeProbe interface {
	Ping(ctx context.Context) error
}

// StorePinger probes the vector store (SQLite file or Qdrant gRPC).
// It satisfies the Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	// store is the probed backend.
	store storeProbe
	// name identifies the backend in readiness responses (e.g. "sqlite").
	name string
}

// NewStorePinger constructs a StorePinger labelled name.
func NewStorePinger(store storeProbe, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping delegates to the store's own health check.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// HTTPPinger probes an HTTP dependency (the Ollama API, the GitHub API) with
// a GET and treats any status below 500 as reachable. It never spends model
// tokens.
type HTTPPinger struct {
	// url is the probed endpoint.
	url string
	// name identifies the dependency in readiness responses.
	name string
	// client performs the probe.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger. client defaults to http.DefaultClient.
func NewHTTPPinger(name, url string, client *http.Client) *HTTPPinger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPinger{url: url, name: name, client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET request.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy status %d", resp.StatusCode)
	}
	return nil
}
