package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/rag"
)

// Index is the store surface the synchronizer needs: one bulk read of the
// existing IDs and one bulk insert.
type Index interface {
	// IDs returns every stored chunk ID.
	IDs(ctx context.Context) ([]string, error)
	// Add embeds and stores docs.
	Add(ctx context.Context, docs []rag.Document) error
}

// Synchronizer adds only chunks whose IDs are not yet stored.
type Synchronizer struct {
	// index is the target store.
	index Index
}

// NewSynchronizer constructs a Synchronizer over index.
func NewSynchronizer(index Index) (*Synchronizer, error) {
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	return &Synchronizer{index: index}, nil
}

// Sync reads the stored IDs once, drops candidates that are already present
// (or repeated within the batch, first occurrence wins) and submits the rest
// in one Add. It returns the number of chunks added. Add failures are
// returned as-is and never retried.
func (s *Synchronizer) Sync(ctx context.Context, candidates []rag.Document) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	existing, err := s.index.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingestion: reading stored ids: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	fresh := make([]rag.Document, 0, len(candidates))
	for _, d := range candidates {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		fresh = append(fresh, d)
	}

	log := logging.FromContext(ctx)
	log.Debug("ingestion: sync diff",
		slog.Int("candidates", len(candidates)),
		slog.Int("stored", len(existing)),
		slog.Int("new", len(fresh)),
		slog.Int("skipped", len(candidates)-len(fresh)),
	)

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.index.Add(ctx, fresh); err != nil {
		return 0, fmt.Errorf("ingestion: adding %d chunks: %w", len(fresh), err)
	}
	return len(fresh), nil
}
