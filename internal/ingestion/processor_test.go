package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/kbai-go/internal/rag"
)

// writeFile creates dir/name with content and returns the full path.
func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestCodeProcessor_IDsAndMetadata(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", []byte("def f():\n    return 1\n"))

	p := NewCodeProcessor(dir, Window{Size: 10, Overlap: 2})
	docs, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("want chunks, got none")
	}
	for i, d := range docs {
		wantID := "code_a.py_c" + itoa(i)
		if d.ID != wantID {
			t.Errorf("doc %d: want id %q, got %q", i, wantID, d.ID)
		}
		if d.Kind != rag.KindCode || d.Source != "a.py" {
			t.Errorf("doc %d: kind/source = %s/%s", i, d.Kind, d.Source)
		}
		if d.Metadata[rag.MetaLanguage] != "python" || d.Metadata[rag.MetaFileHash] == "" {
			t.Errorf("doc %d: metadata = %+v", i, d.Metadata)
		}
	}
}

func TestCodeProcessor_Deterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "pkg/util.c", []byte(strings.Repeat("int x = 1;\n", 40)))

	p := NewCodeProcessor(dir, Window{Size: 64, Overlap: 8})
	first, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk count differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Content != second[i].Content {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
	if !strings.HasPrefix(first[0].ID, "code_pkg/util.c_c") {
		t.Errorf("want id relative to root, got %q", first[0].ID)
	}
}

func TestCodeProcessor_DropsInvalidUTF8(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "bin.h", []byte("ab\xff\xfecd"))

	docs, err := NewCodeProcessor(dir, Window{Size: 100, Overlap: 10}).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "abcd" {
		t.Errorf("want single chunk %q, got %+v", "abcd", docs)
	}
}

func TestCodeProcessor_Unreadable(t *testing.T) {
	t.Parallel()
	_, err := NewCodeProcessor("", Window{Size: 10, Overlap: 2}).
		Process(context.Background(), filepath.Join(t.TempDir(), "missing.py"))
	if !errors.Is(err, ErrRead) {
		t.Fatalf("want ErrRead, got %v", err)
	}
}

// fakeExtractor serves fixed page texts; a page listed in failPages errors.
type fakeExtractor struct {
	pages     []string
	failPages map[int]bool
	openErr   error
}

func (f *fakeExtractor) Open(string) (PDFDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeExtractor) NumPages() int { return len(f.pages) }

func (f *fakeExtractor) PageText(i int) (string, error) {
	if f.failPages[i] {
		return "", ErrPageExtraction
	}
	return f.pages[i-1], nil
}

func (f *fakeExtractor) Close() error { return nil }

func TestPDFProcessor_PageSpans(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "manual.pdf", []byte("%PDF-fake"))

	ex := &fakeExtractor{pages: []string{
		"aaaaaaaaaa",   // page 1: runes 0-9
		"bbbbbbbbbb\n", // page 2: runes 11-20 after the joining space
		"",             // page 3: empty, contributes nothing
		"cccccccccc",   // page 4: runes 22-31
	}}
	p := NewPDFProcessor(dir, Window{Size: 12, Overlap: 2}, ex)

	docs, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// 32 runes, step 10 → starts 0, 10, 20, 30.
	want := []struct {
		id    string
		pages string
	}{
		{"manual.pdf_chunk_0", "1-2"},
		{"manual.pdf_chunk_1", "2-2"},
		{"manual.pdf_chunk_2", "2-4"},
		{"manual.pdf_chunk_3", "4-4"},
	}
	if len(docs) != len(want) {
		t.Fatalf("want %d chunks, got %d", len(want), len(docs))
	}
	for i, w := range want {
		if docs[i].ID != w.id || docs[i].Location != w.pages {
			t.Errorf("chunk %d: got %s pages %s, want %s pages %s", i, docs[i].ID, docs[i].Location, w.id, w.pages)
		}
		if docs[i].Kind != rag.KindDocument {
			t.Errorf("chunk %d: kind %s", i, docs[i].Kind)
		}
	}
}

func TestPDFProcessor_FailedPageIsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", []byte("%PDF-fake"))

	ex := &fakeExtractor{
		pages:     []string{"first page", "unreadable", "third page"},
		failPages: map[int]bool{2: true},
	}
	docs, err := NewPDFProcessor(dir, Window{Size: 100, Overlap: 10}, ex).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(docs))
	}
	if docs[0].Content != "first page third page" || docs[0].Location != "1-3" {
		t.Errorf("got %q pages %s", docs[0].Content, docs[0].Location)
	}
}

func TestPDFProcessor_OpenFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.pdf", []byte("not a pdf"))

	ex := &fakeExtractor{openErr: errors.New("malformed xref")}
	_, err := NewPDFProcessor(dir, Window{Size: 10, Overlap: 2}, ex).Process(context.Background(), path)
	if !errors.Is(err, ErrRead) {
		t.Fatalf("want ErrRead, got %v", err)
	}
}

func TestPageSpan_NoOverlap(t *testing.T) {
	t.Parallel()
	if got := pageSpan(nil, span{0, 5}); got != "" {
		t.Errorf("want empty span, got %q", got)
	}
}

// itoa avoids pulling strconv into every assertion.
func itoa(i int) string {
	return string(rune('0' + i))
}
