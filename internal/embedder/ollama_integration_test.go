//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds against a locally running Ollama.
//
//	ollama pull nomic-embed-text
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewCached(NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"socket() creates an endpoint for communication.",
		"The installation guide lists the supported platforms.",
	}
	embeddings, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed: %v (is Ollama running with %q pulled?)", err, model)
	}
	if len(embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	if !vectorsDiffer(embeddings[0], embeddings[1]) {
		t.Error("two different texts produced identical vectors")
	}

	q := []string{"how do I open a socket"}
	if _, err := emb.Embed(ctx, q); err != nil {
		t.Fatalf("query embed: %v", err)
	}
	if emb.Len() != 1 {
		t.Errorf("want query cached, cache holds %d", emb.Len())
	}
	t.Logf("model=%s dim=%d (set EMBEDDING_DIMENSIONS=%d when STORE_BACKEND=qdrant)", model, len(embeddings[0]), len(embeddings[0]))
}

func vectorsDiffer(a, b []float32) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
