package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultOllamaTimeout bounds one /api/embed call. Local models can be slow
// to load on the first request.
const defaultOllamaTimeout = 60 * time.Second

// OllamaConfig locates an Ollama server and its embedding model.
type OllamaConfig struct {
	Host  string
	Model string
	// Timeout defaults to 60s.
	Timeout time.Duration
}

// OllamaEmbedder implements rag.Embedder with Ollama's batch /api/embed.
type OllamaEmbedder struct {
	url    string
	model  string
	client *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{
		url:    strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out ollamaEmbedResponse
	in := ollamaEmbedRequest{Model: e.model, Input: texts}

	if err := postJSON(ctx, e.client, e.url, nil, in, &out, func() string { return out.Error }); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if got := len(out.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embedder: %d inputs, %d embeddings", len(texts), got)
	}
	return out.Embeddings, nil
}
