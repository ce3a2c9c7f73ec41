// Package rag defines the retrieval side of kbai: the chunk model stored in
// the vector store, the store and embedder interfaces, and the retriever that
// turns a question into filtered, ranked context with citations.
// Concrete stores (SQLite, Qdrant) satisfy VectorStore so the rest of the
// program never depends on a specific backend.
package rag

import (
	"context"
	"errors"
	"strconv"
)

// Kind classifies where a chunk came from. The string value is what gets
// persisted under the "type" metadata key and what retrieval filters match.
type Kind string

const (
	// KindCode marks chunks cut from source files.
	KindCode Kind = "code"
	// KindDocument marks chunks cut from PDF documents.
	KindDocument Kind = "pdf"
)

// Metadata keys persisted alongside every chunk.
const (
	MetaType       = "type"
	MetaSource     = "source"
	MetaPages      = "pages"
	MetaChunkIndex = "chunk_index"
	MetaLanguage   = "language"
	MetaFileHash   = "file_hash"
)

var (
	// ErrEmptyRetrieval is returned when a query matches no stored chunk.
	ErrEmptyRetrieval = errors.New("no information found")
	// ErrStoreUnavailable is returned when the persistent store cannot be
	// opened or reached at startup.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Document is one chunk: a contiguous span of text cut from a source file,
// identified by a deterministic ID. Once stored it is never mutated.
type Document struct {
	// ID is the deterministic identifier derived from the file name and
	// chunk position (e.g. "code_main.py_c0", "manual.pdf_chunk_3").
	ID string

	// Content is the chunk text.
	Content string

	// Source is the originating file name.
	Source string

	// Kind is code or pdf.
	Kind Kind

	// Location is the page span ("3-4") for PDF chunks, empty for code.
	Location string

	// Metadata holds the remaining key-value pairs (language, hash, index).
	Metadata map[string]string

	// Score is the similarity assigned during retrieval. Zero when not queried.
	Score float32
}

// Payload flattens the document into the string map persisted by stores.
// Type, source and page span always win over same-named Metadata keys.
func (d *Document) Payload() map[string]string {
	out := make(map[string]string, len(d.Metadata)+3)
	for k, v := range d.Metadata {
		out[k] = v
	}
	out[MetaType] = string(d.Kind)
	out[MetaSource] = d.Source
	if d.Location != "" {
		out[MetaPages] = d.Location
	}
	return out
}

// documentFromPayload is the inverse of Payload, used by stores when reading.
func documentFromPayload(id, content string, payload map[string]string) Document {
	doc := Document{
		ID:       id,
		Content:  content,
		Source:   payload[MetaSource],
		Kind:     Kind(payload[MetaType]),
		Location: payload[MetaPages],
		Metadata: make(map[string]string, len(payload)),
	}
	for k, v := range payload {
		switch k {
		case MetaType, MetaSource, MetaPages:
		default:
			doc.Metadata[k] = v
		}
	}
	return doc
}

// ChunkIndex returns the positional index recorded in metadata, or -1.
func (d *Document) ChunkIndex() int {
	i, err := strconv.Atoi(d.Metadata[MetaChunkIndex])
	if err != nil {
		return -1
	}
	return i
}

// Filter is an equality predicate over one metadata field. A nil *Filter
// matches everything.
type Filter struct {
	// Field is the metadata key, always MetaType today.
	Field string
	// Value is the required value.
	Value string
}

// Matches reports whether payload satisfies the filter.
func (f *Filter) Matches(payload map[string]string) bool {
	if f == nil {
		return true
	}
	return payload[f.Field] == f.Value
}

// VectorStore persists chunk embeddings and answers similarity queries.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Add inserts docs with their embeddings. embeddings[i] is the vector
	// for docs[i]. IDs that already exist are left untouched.
	Add(ctx context.Context, docs []Document, embeddings [][]float32) error

	// IDs returns the identifiers of every stored chunk.
	IDs(ctx context.Context) ([]string, error)

	// Query returns up to topK documents ranked by similarity to embedding,
	// restricted to filter when non-nil.
	Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Document, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
