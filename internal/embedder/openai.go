// Package embedder turns chunk and question text into dense vectors for the
// knowledge base. Ollama and OpenAI-compatible backends (including Azure) are
// spoken to over plain HTTP; Gemini goes through google.golang.org/genai.
// NewCached wraps any backend with an in-memory TTL cache for query reuse.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIConfig selects an OpenAI or Azure OpenAI embeddings endpoint.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	// Azure routes to /deployments/<Model> and authenticates with the
	// api-key header; APIVersion is only read in this mode.
	Azure      bool
	APIVersion string
}

// OpenAIEmbedder implements rag.Embedder over the OpenAI embeddings REST API.
// The URL and auth header are resolved once; it is safe for concurrent use.
type OpenAIEmbedder struct {
	url        string
	headers    map[string]string
	model      string
	dimensions int
	client     *http.Client
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	e := &OpenAIEmbedder{
		url:        base + "/embeddings",
		headers:    map[string]string{"Authorization": "Bearer " + cfg.APIKey},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.Azure {
		e.url = base + "/deployments/" + url.PathEscape(cfg.Model) + "/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
		e.headers = map[string]string{"api-key": cfg.APIKey}
	}
	return e
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per input text, in order. The API may return data
// out of order, so results are placed by their index field.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result openaiEmbedResponse
	err := postJSON(ctx, e.client, e.url, e.headers,
		openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions},
		&result,
		func() string {
			if result.Error == nil {
				return ""
			}
			return result.Error.Message
		},
	)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("openai embedder: bad or repeated index %d for %d inputs", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai embedder: no embedding for input %d", i)
		}
	}
	return vectors, nil
}
