// Package ingestion turns local files into indexed chunks. It walks the
// configured PDF and source directories, chunks each file with the
// matching Processor and hands the candidates to a Synchronizer that adds
// only chunks the store does not hold yet.
// This pipeline runs when `kbai chat` starts and on `kbai ingest`.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/rag"
)

// Defaults for the chunk window.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// PDFDir is the directory searched for *.pdf files. Empty disables PDFs.
	PDFDir string

	// CodeDir is the directory searched for source files. Empty disables code.
	CodeDir string

	// CodeExtensions selects source files by extension.
	// Defaults to DefaultCodeExtensions if empty.
	CodeExtensions []string

	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to DefaultChunkOverlap if zero.
	ChunkOverlap int

	// Extractor opens PDFs. Defaults to LedongthucExtractor.
	Extractor PageExtractor

	// Metrics records per-file outcomes. May be nil.
	Metrics *metrics.Metrics
}

// Failure records a file that could not be ingested.
type Failure struct {
	// Path is the file that failed.
	Path string
	// Err is the reason.
	Err error
}

// Report summarises one ingestion run.
type Report struct {
	// Files is the number of files discovered.
	Files int
	// Failed lists files that were skipped.
	Failed []Failure
	// Candidates is the number of chunks produced.
	Candidates int
	// Added is the number of chunks newly stored.
	Added int
}

// Pipeline orchestrates the discover → chunk → synchronize flow.
type Pipeline struct {
	// sync adds only unseen chunks to the store.
	sync *Synchronizer

	// code and pdf chunk the two file kinds.
	code Processor
	pdf  Processor

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline writing into index.
func NewPipeline(index Index, cfg *Config) (*Pipeline, error) {
	sync, err := NewSynchronizer(index)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w (size %d, overlap %d)", ErrInvalidWindow, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if len(cfg.CodeExtensions) == 0 {
		cfg.CodeExtensions = append([]string(nil), DefaultCodeExtensions...)
	}

	window := Window{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	return &Pipeline{
		sync: sync,
		code: NewCodeProcessor(cfg.CodeDir, window),
		pdf:  NewPDFProcessor(cfg.PDFDir, window, cfg.Extractor),
		cfg:  cfg,
	}, nil
}

// Ingest processes every discovered file and synchronizes the chunks into the
// store. Unreadable files are logged, recorded in the report and skipped; a
// store failure aborts the run. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)
	report := &Report{}

	type job struct {
		path string
		kind rag.Kind
		proc Processor
	}
	var jobs []job

	pdfs, err := discover(p.cfg.PDFDir, []string{".pdf"})
	if err != nil {
		return nil, err
	}
	for _, f := range pdfs {
		jobs = append(jobs, job{path: f, kind: rag.KindDocument, proc: p.pdf})
	}
	sources, err := discover(p.cfg.CodeDir, p.cfg.CodeExtensions)
	if err != nil {
		return nil, err
	}
	for _, f := range sources {
		jobs = append(jobs, job{path: f, kind: rag.KindCode, proc: p.code})
	}
	report.Files = len(jobs)

	var candidates []rag.Document
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		docs, err := j.proc.Process(ctx, j.path)
		if err != nil {
			log.Warn("ingestion: file skipped", slog.String("file", j.path), slog.Any("error", err))
			report.Failed = append(report.Failed, Failure{Path: j.path, Err: err})
			p.cfg.Metrics.FileProcessed(string(j.kind), metrics.OutcomeSkipped)
			continue
		}
		p.cfg.Metrics.FileProcessed(string(j.kind), metrics.OutcomeOK)
		progress(fmt.Sprintf("chunked %s into %d chunks", j.path, len(docs)))
		candidates = append(candidates, docs...)
	}
	report.Candidates = len(candidates)

	added, err := p.sync.Sync(ctx, candidates)
	if err != nil {
		return report, err
	}
	report.Added = added
	p.cfg.Metrics.ChunksAdded(added)
	progress(fmt.Sprintf("added %d new chunks (%d already stored)", added, len(candidates)-added))

	return report, nil
}

// discover walks dir and returns files whose extension is in exts, in
// lexical order. Hidden directories are skipped. A missing or empty dir
// yields no files.
func discover(dir string, exts []string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if hasExtension(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %s: %w", dir, err)
	}
	return files, nil
}
