// Package agent answers questions with the chat model, either from retrieved
// knowledge-base context or by calling one of the registered tools.
//
// Both paths end in a streamed completion written to an io.Writer, usually a
// render.Renderer. Tool calls use a plain JSON wire format rather than native
// function calling so that every backend (including small local models)
// behaves the same way.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/kbai-go/internal/budget"
	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/tools"
)

// DefaultLanguage is the answer language when none is configured.
const DefaultLanguage = "English"

// Model call phases, used as metric labels.
const (
	phaseRAG    = "rag"
	phaseSelect = "select"
	phaseAnswer = "answer"
)

// Retriever is the retrieval surface the assistant needs.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) (*rag.Result, error)
}

// Config holds the dependencies of an Assistant.
type Config struct {
	// ChatModel is the backend built by the provider factory.
	ChatModel model.BaseChatModel

	// Retriever serves the rag path. Required.
	Retriever Retriever

	// Tools serves the tool path. May be nil, in which case InvokeTool fails.
	Tools *tools.Registry

	// TopK is the number of chunks retrieved per question.
	// Defaults to rag.DefaultTopK if zero.
	TopK int

	// Language is the answer language. Defaults to DefaultLanguage.
	Language string

	// MaxContextTokens bounds the rag prompt; low-ranked chunks are dropped
	// to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Assistant runs the two answer paths.
type Assistant struct {
	model     model.BaseChatModel
	retriever Retriever
	tools     *tools.Registry
	topK      int
	language  string
	maxTokens int
	metrics   *metrics.Metrics
}

// New constructs an Assistant from cfg.
func New(cfg *Config) (*Assistant, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("agent: Retriever must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}

	return &Assistant{
		model:     cfg.ChatModel,
		retriever: cfg.Retriever,
		tools:     cfg.Tools,
		topK:      topK,
		language:  lang,
		maxTokens: maxTokens,
		metrics:   cfg.Metrics,
	}, nil
}

// Tools returns the tool registry, or nil.
func (a *Assistant) Tools() *tools.Registry { return a.tools }

// Ask answers question from the knowledge base and streams the answer to w.
// The returned Result holds the chunks actually sent to the model, for
// citations. When nothing matches, rag.ErrEmptyRetrieval is returned and the
// model is not called.
func (a *Assistant) Ask(ctx context.Context, question string, w io.Writer) (*rag.Result, error) {
	log := logging.FromContext(ctx)

	res, err := a.retriever.Retrieve(ctx, question, a.topK)
	switch {
	case errors.Is(err, rag.ErrEmptyRetrieval):
		a.metrics.Retrieval(metrics.OutcomeEmpty)
		return res, err
	case err != nil:
		a.metrics.Retrieval(metrics.OutcomeError)
		return nil, fmt.Errorf("agent: retrieval failed: %w", err)
	}
	a.metrics.Retrieval(metrics.OutcomeOK)

	system := schema.SystemMessage(ragSystem(a.language))
	contents := make([]string, len(res.Chunks))
	for i, c := range res.Chunks {
		contents[i] = c.Content
	}
	keep := budget.FitChunks([]*schema.Message{system, schema.UserMessage(ragUser("", question))}, contents, a.maxTokens)
	if dropped := len(res.Chunks) - keep; dropped > 0 {
		log.Warn("budget: dropped low-ranked chunks to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", keep),
			slog.Int("max_tokens", a.maxTokens),
		)
		res.Chunks = res.Chunks[:keep]
	}

	messages := []*schema.Message{system, schema.UserMessage(ragUser(res.Context(), question))}
	a.metrics.ModelCall(phaseRAG)
	if _, err := a.stream(ctx, messages, w); err != nil {
		return res, err
	}
	return res, nil
}

// stream sends messages and copies every fragment to w as it arrives. The
// full text is returned. Cancelling ctx stops consumption between fragments.
func (a *Assistant) stream(ctx context.Context, messages []*schema.Message, w io.Writer) (string, error) {
	sr, err := a.model.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var full strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		full.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return full.String(), fmt.Errorf("agent: write error: %w", err)
		}
	}
	return full.String(), nil
}
