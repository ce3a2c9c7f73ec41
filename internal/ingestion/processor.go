package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/kbai-go/internal/rag"
)

var (
	// ErrRead is returned when a source file cannot be opened or read.
	// The pipeline skips such files and records them in its report.
	ErrRead = errors.New("ingestion: file could not be read")
	// ErrPageExtraction marks a PDF page whose text could not be extracted.
	// The page contributes empty text and processing continues.
	ErrPageExtraction = errors.New("ingestion: page text extraction failed")
)

// Processor turns one file into chunks ready for indexing. Every returned
// Document carries its chunk text, deterministic ID and metadata together.
type Processor interface {
	// Process reads the file at path and returns its chunks in order.
	Process(ctx context.Context, path string) ([]rag.Document, error)
}

// Window is the chunking configuration shared by all processors.
type Window struct {
	// Size is the maximum number of characters per chunk.
	Size int
	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// CodeProcessor chunks source files as plain text.
type CodeProcessor struct {
	// root is the directory IDs are made relative to.
	root string
	// window is the chunking configuration.
	window Window
}

// NewCodeProcessor constructs a CodeProcessor for files under root.
func NewCodeProcessor(root string, window Window) *CodeProcessor {
	return &CodeProcessor{root: root, window: window}
}

// Process reads the whole file, drops bytes that are not valid UTF-8 and
// returns chunks with IDs of the form "code_<name>_c<index>".
func (p *CodeProcessor) Process(_ context.Context, path string) ([]rag.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}

	text := strings.ToValidUTF8(string(raw), "")
	chunks, err := Split(text, p.window.Size, p.window.Overlap)
	if err != nil {
		return nil, err
	}

	name := relativeName(p.root, path)
	hash := contentHash(raw)
	lang := InferLanguage(path)

	docs := make([]rag.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, rag.Document{
			ID:      "code_" + name + "_c" + strconv.Itoa(i),
			Content: c,
			Source:  name,
			Kind:    rag.KindCode,
			Metadata: map[string]string{
				rag.MetaChunkIndex: strconv.Itoa(i),
				rag.MetaLanguage:   lang,
				rag.MetaFileHash:   hash,
			},
		})
	}
	return docs, nil
}

// relativeName returns path relative to root with forward slashes, falling
// back to the base name when path is not under root.
func relativeName(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// contentHash computes a stable sha256 hex digest of file content.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
