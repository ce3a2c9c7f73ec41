package rag

import (
	"context"
	"fmt"
)

// embedBatchSize bounds how many chunk texts are sent to the embedder in a
// single request during Add.
const embedBatchSize = 64

// Collection pairs a VectorStore with an Embedder so callers can work in
// text: add documents and query with a question string.
type Collection struct {
	// store holds the embedded chunks.
	store VectorStore

	// embedder turns chunk and query text into vectors.
	embedder Embedder
}

// NewCollection constructs a Collection over store using embedder.
func NewCollection(store VectorStore, embedder Embedder) (*Collection, error) {
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	return &Collection{store: store, embedder: embedder}, nil
}

// Add embeds docs in batches and submits them to the store in one insert.
func (c *Collection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	embeddings := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Content)
		}
		vecs, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("rag: embedding chunks failed: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		embeddings = append(embeddings, vecs...)
	}

	if err := c.store.Add(ctx, docs, embeddings); err != nil {
		return fmt.Errorf("rag: add failed: %w", err)
	}
	return nil
}

// IDs returns every stored chunk ID.
func (c *Collection) IDs(ctx context.Context) ([]string, error) {
	ids, err := c.store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: listing ids failed: %w", err)
	}
	return ids, nil
}

// Query embeds text and returns up to n matching documents.
func (c *Collection) Query(ctx context.Context, text string, n int, filter *Filter) ([]Document, error) {
	embeddings, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	docs, err := c.store.Query(ctx, embeddings[0], n, filter)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored chunks.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rag: count failed: %w", err)
	}
	return n, nil
}
