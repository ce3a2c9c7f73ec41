package ingestion

import (
	"errors"
	"strings"
)

// ErrInvalidWindow is returned when a chunk window does not satisfy
// 0 < overlap < size.
var ErrInvalidWindow = errors.New("ingestion: chunk overlap must be positive and smaller than chunk size")

// newlineReplacer turns every line break into a single space.
var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize collapses line breaks to spaces and trims surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(newlineReplacer.Replace(text))
}

// Split normalizes text and cuts it into overlapping windows of size runes
// that advance by size-overlap. A window starts at every step until the start
// reaches the end of the text, so the last chunk may be short and the first
// size-overlap runes of each chunk, concatenated, rebuild the normalized text.
func Split(text string, size, overlap int) ([]string, error) {
	runes := []rune(Normalize(text))
	spans, err := windows(len(runes), size, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, string(runes[s.start:s.end]))
	}
	return chunks, nil
}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

// windows returns the chunk spans for a text of n runes.
func windows(n, size, overlap int) ([]span, error) {
	if overlap <= 0 || overlap >= size {
		return nil, ErrInvalidWindow
	}
	step := size - overlap
	out := make([]span, 0, n/step+1)
	for start := 0; start < n; start += step {
		out = append(out, span{start: start, end: min(start+size, n)})
	}
	return out, nil
}
