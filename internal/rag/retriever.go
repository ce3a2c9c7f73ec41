package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/kbai-go/internal/logging"
)

// DefaultTopK is the number of chunks retrieved per question when the caller
// does not ask for a specific count.
const DefaultTopK = 3

// Querier is the part of a Collection the retriever needs.
type Querier interface {
	// Query returns up to n documents for text, restricted to filter.
	Query(ctx context.Context, text string, n int, filter *Filter) ([]Document, error)
}

// Citation identifies the origin of one chunk used as context.
type Citation struct {
	// ChunkID is the stored chunk identifier.
	ChunkID string
	// Filename is the source file name.
	Filename string
	// Page is the page span for PDF chunks, empty for code.
	Page string
}

// String renders the citation for terminal output.
func (c Citation) String() string {
	if c.Page != "" {
		return fmt.Sprintf("%s (p. %s) [%s]", c.Filename, c.Page, c.ChunkID)
	}
	return fmt.Sprintf("%s [%s]", c.Filename, c.ChunkID)
}

// Result is the outcome of one retrieval: the ranked chunks and the filter
// that was applied.
type Result struct {
	// Chunks are ordered as the store ranked them.
	Chunks []Document
	// Filter is the keyword-derived filter, nil when none applied.
	Filter *Filter
}

// Context joins the chunk contents in rank order.
func (r *Result) Context() string {
	parts := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n")
}

// Citations returns one citation per chunk in rank order.
func (r *Result) Citations() []Citation {
	out := make([]Citation, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		out = append(out, Citation{ChunkID: c.ID, Filename: c.Source, Page: c.Location})
	}
	return out
}

// FilterFor derives a metadata filter from keywords in the question.
// "pdf" restricts to documents, otherwise "code" restricts to source files;
// with neither keyword no filter applies.
func FilterFor(question string) *Filter {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "pdf"):
		return &Filter{Field: MetaType, Value: string(KindDocument)}
	case strings.Contains(q, "code"):
		return &Filter{Field: MetaType, Value: string(KindCode)}
	default:
		return nil
	}
}

// Retriever fetches context for a question from a Querier.
type Retriever struct {
	// collection answers similarity queries.
	collection Querier

	// defaultTopK is used when Retrieve is called with topK <= 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever over collection.
func NewRetriever(collection Querier, defaultTopK int) (*Retriever, error) {
	if collection == nil {
		return nil, fmt.Errorf("rag: collection must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{collection: collection, defaultTopK: defaultTopK}, nil
}

// Retrieve returns up to topK chunks for question. The keyword filter from
// FilterFor is applied. ErrEmptyRetrieval is returned when nothing matched.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}
	filter := FilterFor(question)

	docs, err := r.collection.Query(ctx, question, topK, filter)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	if filter != nil {
		log.Debug("rag: keyword filter applied", slog.String("type", filter.Value))
	}
	if len(docs) == 0 {
		return &Result{Filter: filter}, ErrEmptyRetrieval
	}

	log.Debug("rag: retrieved chunks", slog.Int("count", len(docs)))
	return &Result{Chunks: docs, Filter: filter}, nil
}
