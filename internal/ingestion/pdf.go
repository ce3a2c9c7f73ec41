package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/rag"
)

// PageExtractor opens PDF files for page-by-page text extraction.
type PageExtractor interface {
	// Open returns a handle on the document at path.
	Open(path string) (PDFDocument, error)
}

// PDFDocument exposes the pages of one opened PDF.
type PDFDocument interface {
	// NumPages returns the number of pages.
	NumPages() int
	// PageText returns the plain text of page i (1-based).
	PageText(i int) (string, error)
	// Close releases the underlying file.
	Close() error
}

// LedongthucExtractor is the PageExtractor backed by github.com/ledongthuc/pdf.
type LedongthucExtractor struct{}

// Open opens the PDF at path.
func (LedongthucExtractor) Open(path string) (PDFDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &ledongthucDocument{file: f, reader: r}, nil
}

// ledongthucDocument adapts *pdf.Reader to PDFDocument.
type ledongthucDocument struct {
	file   *os.File
	reader *pdf.Reader
}

func (d *ledongthucDocument) NumPages() int { return d.reader.NumPage() }

// PageText extracts one page. The parser panics on some malformed content
// streams, so a panic is reported as ErrPageExtraction.
func (d *ledongthucDocument) PageText(i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: page %d: %v", ErrPageExtraction, i, r)
		}
	}()
	p := d.reader.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %v", ErrPageExtraction, i, err)
	}
	return text, nil
}

func (d *ledongthucDocument) Close() error { return d.file.Close() }

// PDFProcessor chunks PDF documents. Pages are normalized and joined into a
// single text with tracked offsets so that every chunk records the page span
// it was cut from.
type PDFProcessor struct {
	// root is the directory IDs are made relative to.
	root string
	// window is the chunking configuration.
	window Window
	// extractor opens documents.
	extractor PageExtractor
}

// NewPDFProcessor constructs a PDFProcessor. A nil extractor selects
// LedongthucExtractor.
func NewPDFProcessor(root string, window Window, extractor PageExtractor) *PDFProcessor {
	if extractor == nil {
		extractor = LedongthucExtractor{}
	}
	return &PDFProcessor{root: root, window: window, extractor: extractor}
}

// pageRange is the rune range page occupies in the joined document text.
type pageRange struct {
	page       int
	start, end int
}

// Process extracts every page, chunks the joined text and returns chunks with
// IDs of the form "<name>_chunk_<index>" and a "min-max" page span.
func (p *PDFProcessor) Process(ctx context.Context, path string) ([]rag.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}

	doc, err := p.extractor.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	defer doc.Close()

	log := logging.FromContext(ctx)

	var (
		joined []rune
		ranges []pageRange
	)
	for i := 1; i <= doc.NumPages(); i++ {
		text, err := doc.PageText(i)
		if err != nil {
			log.Warn("ingestion: page skipped",
				slog.String("file", path),
				slog.Int("page", i),
				slog.Any("error", err),
			)
			continue
		}
		page := []rune(Normalize(text))
		if len(page) == 0 {
			continue
		}
		if len(joined) > 0 {
			joined = append(joined, ' ')
		}
		start := len(joined)
		joined = append(joined, page...)
		ranges = append(ranges, pageRange{page: i, start: start, end: len(joined)})
	}

	spans, err := windows(len(joined), p.window.Size, p.window.Overlap)
	if err != nil {
		return nil, err
	}

	name := relativeName(p.root, path)
	hash := contentHash(raw)

	docs := make([]rag.Document, 0, len(spans))
	for i, s := range spans {
		docs = append(docs, rag.Document{
			ID:       name + "_chunk_" + strconv.Itoa(i),
			Content:  string(joined[s.start:s.end]),
			Source:   name,
			Kind:     rag.KindDocument,
			Location: pageSpan(ranges, s),
			Metadata: map[string]string{
				rag.MetaChunkIndex: strconv.Itoa(i),
				rag.MetaFileHash:   hash,
			},
		})
	}
	return docs, nil
}

// pageSpan returns "min-max" for the pages whose text overlaps s.
func pageSpan(ranges []pageRange, s span) string {
	lo, hi := 0, 0
	for _, r := range ranges {
		if r.end <= s.start || r.start >= s.end {
			continue
		}
		if lo == 0 {
			lo = r.page
		}
		hi = r.page
	}
	if lo == 0 {
		return ""
	}
	return strconv.Itoa(lo) + "-" + strconv.Itoa(hi)
}
