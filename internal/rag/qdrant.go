package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys reserved by QdrantStore alongside the document metadata.
const (
	qdrantKeyChunkID = "chunk_id"
	qdrantKeyContent = "content"
)

// qdrantScrollPage is the page size used when listing every point ID.
const qdrantScrollPage = 256

// pointNamespace scopes the name-based UUIDs derived from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c7a8e-2b0d-4d55-9a53-0b1c0dec0de0")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Qdrant point IDs must be UUIDs or integers, so each chunk ID is mapped to a
// SHA-1 name UUID and the original ID is kept in the payload.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "local_knowledge"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant client: %v", ErrStoreUnavailable, err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID maps a chunk ID to its deterministic Qdrant point ID.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(chunkID)).String())
}

// Add inserts docs with their embeddings. Because point IDs are derived from
// chunk IDs, re-adding an existing chunk lands on the same point; callers
// filter existing IDs first so stored chunks are not rewritten.
func (s *QdrantStore) Add(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: add: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i := range docs {
		payload := map[string]any{
			qdrantKeyChunkID: docs[i].ID,
			qdrantKeyContent: docs[i].Content,
		}
		for k, v := range docs[i].Payload() {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(docs[i].ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: add failed: %w", err)
	}

	return nil
}

// IDs scrolls through the whole collection and returns every chunk ID.
func (s *QdrantStore) IDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		offset *qdrant.PointId
	)
	// The scroll offset is inclusive, so each page asks for one extra point
	// and uses it as the start of the next page.
	limit := uint32(qdrantScrollPage + 1)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayloadInclude(qdrantKeyChunkID),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
		}

		page := points
		if len(points) > qdrantScrollPage {
			page = points[:qdrantScrollPage]
		}
		for _, p := range page {
			if v, ok := p.GetPayload()[qdrantKeyChunkID]; ok {
				ids = append(ids, v.GetStringValue())
			}
		}

		if len(points) <= qdrantScrollPage {
			return ids, nil
		}
		offset = points[qdrantScrollPage].GetId()
	}
}

// Query performs a cosine similarity search restricted to filter.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Document, error) {
	limit := uint64(topK) //nolint:gosec // topK is a small positive count
	req := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(filter.Field, filter.Value)},
		}
	}

	results, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		payload := make(map[string]string, len(r.GetPayload()))
		var id, content string
		for k, v := range r.GetPayload() {
			switch k {
			case qdrantKeyChunkID:
				id = v.GetStringValue()
			case qdrantKeyContent:
				content = v.GetStringValue()
			default:
				payload[k] = v.GetStringValue()
			}
		}
		doc := documentFromPayload(id, content, payload)
		doc.Score = r.GetScore()
		docs = append(docs, doc)
	}

	return docs, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil //nolint:gosec // collection sizes fit in int
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
