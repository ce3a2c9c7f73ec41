package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/kbai-go/internal/agent"
	"github.com/54b3r/kbai-go/internal/embedder"
	"github.com/54b3r/kbai-go/internal/ingestion"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/provider"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/render"
	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tools"
	"github.com/54b3r/kbai-go/internal/ui"
)

// Store backends selectable via STORE_BACKEND.
const (
	storeSQLite = "sqlite"
	storeQdrant = "qdrant"
)

// knowledgeBase bundles the opened store with the collection that embeds
// into it. Close releases the store.
type knowledgeBase struct {
	store      rag.VectorStore
	collection *rag.Collection
	// backend is sqlite or qdrant.
	backend string
	// location is the database path or host:port/collection, for logs.
	location string
}

// Close releases the underlying store.
func (kb *knowledgeBase) Close() error { return kb.store.Close() }

// openKnowledgeBase opens the configured store and wraps it with a cached
// embedder. A store that cannot be opened is fatal.
func openKnowledgeBase(ctx context.Context, log *slog.Logger) (*knowledgeBase, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	emb = embedder.NewCached(emb, embedder.DefaultCacheTTL)

	kb := &knowledgeBase{backend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", storeSQLite))}
	switch kb.backend {
	case storeSQLite:
		path := os.Getenv("KBAI_STORE_PATH")
		if path == "" {
			if path, err = rag.DefaultDBPath(); err != nil {
				return nil, fmt.Errorf("%w: %v", rag.ErrStoreUnavailable, err)
			}
		}
		s, err := rag.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		kb.store, kb.location = s, s.Path()
	case storeQdrant:
		cfg := &rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "kbai"),
			VectorSize: uint64(embedder.DefaultDimensions(embedder.Backend())), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
		s, err := rag.NewQdrantStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		kb.store, kb.location = s, fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (valid values: sqlite, qdrant)", kb.backend)
	}

	kb.collection, err = rag.NewCollection(kb.store, emb)
	if err != nil {
		_ = kb.store.Close()
		return nil, err
	}

	count, err := kb.store.Count(ctx)
	if err != nil {
		_ = kb.store.Close()
		return nil, fmt.Errorf("%w: %v", rag.ErrStoreUnavailable, err)
	}
	log.Info("knowledge store opened",
		slog.String("backend", kb.backend),
		slog.String("location", kb.location),
		slog.Int("chunks", count),
	)
	return kb, nil
}

// ingestConfigFromEnv resolves the ingestion settings. Non-empty flag values
// override the environment.
func ingestConfigFromEnv(pdfDir, codeDir string, m *metrics.Metrics) *ingestion.Config {
	if pdfDir == "" {
		pdfDir = getEnvOrDefault("KBAI_PDF_DIR", "./docs")
	}
	if codeDir == "" {
		codeDir = getEnvOrDefault("KBAI_CODE_DIR", "./src")
	}
	return &ingestion.Config{
		PDFDir:         pdfDir,
		CodeDir:        codeDir,
		CodeExtensions: ingestion.ParseExtensions(os.Getenv("KBAI_CODE_EXTENSIONS")),
		ChunkSize:      getEnvInt("KBAI_CHUNK_SIZE", ingestion.DefaultChunkSize),
		ChunkOverlap:   getEnvInt("KBAI_CHUNK_OVERLAP", ingestion.DefaultChunkOverlap),
		Metrics:        m,
	}
}

// runIngestion synchronizes the configured directories into kb and logs the
// report. Per-file failures are logged and skipped; store failures abort.
func runIngestion(ctx context.Context, log *slog.Logger, kb *knowledgeBase, cfg *ingestion.Config) (*ingestion.Report, error) {
	pipeline, err := ingestion.NewPipeline(kb.collection, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("ingestion starting",
		slog.String("pdf_dir", cfg.PDFDir),
		slog.String("code_dir", cfg.CodeDir),
		slog.Int("chunk_size", cfg.ChunkSize),
		slog.Int("chunk_overlap", cfg.ChunkOverlap),
	)
	report, err := pipeline.Ingest(ctx, func(msg string) { log.Debug(msg) })
	if err != nil {
		return report, fmt.Errorf("ingestion failed: %w", err)
	}
	total, _ := kb.store.Count(ctx)
	log.Info("ingestion complete",
		slog.Int("files", report.Files),
		slog.Int("failed", len(report.Failed)),
		slog.Int("candidates", report.Candidates),
		slog.Int("added", report.Added),
		slog.Int("stored", total),
	)
	return report, nil
}

// buildRegistry constructs the GitHub tool registry.
func buildRegistry(ctx context.Context, log *slog.Logger) (*tools.Registry, error) {
	gh, err := tools.NewGitHub(ctx, tools.GitHubConfig{
		Token:       os.Getenv("GITHUB_TOKEN"),
		DefaultUser: os.Getenv("GITHUB_DEFAULT_USER"),
		BaseURL:     os.Getenv("GITHUB_BASE_URL"),
	})
	if err != nil {
		return nil, err
	}
	if os.Getenv("GITHUB_TOKEN") == "" {
		log.Warn("GITHUB_TOKEN not set, GitHub tools run unauthenticated and need owner/repo names")
	}
	return tools.NewRegistry(gh.Descriptors()...)
}

// buildDispatcher wires the chat model, retriever and tools into a
// session dispatcher.
func buildDispatcher(ctx context.Context, log *slog.Logger, kb *knowledgeBase, registry *tools.Registry, m *metrics.Metrics) (*session.Dispatcher, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	topK := getEnvInt("KBAI_TOP_K", rag.DefaultTopK)
	retriever, err := rag.NewRetriever(kb.collection, topK)
	if err != nil {
		return nil, err
	}

	assistant, err := agent.New(&agent.Config{
		ChatModel:        chatModel,
		Retriever:        retriever,
		Tools:            registry,
		TopK:             topK,
		Language:         getEnvOrDefault("KBAI_ANSWER_LANGUAGE", agent.DefaultLanguage),
		MaxContextTokens: getEnvInt("KBAI_MAX_CONTEXT_TOKENS", 0),
		Metrics:          m,
	})
	if err != nil {
		return nil, err
	}
	return session.NewDispatcher(assistant, m)
}

// wrapWidth returns KBAI_WRAP_WIDTH when set, else the width of the
// terminal behind out, else render.DefaultWidth.
func wrapWidth(out io.Writer) int {
	if w := getEnvInt("KBAI_WRAP_WIDTH", 0); w > 0 {
		return w
	}
	return ui.TerminalWidth(out, render.DefaultWidth)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
