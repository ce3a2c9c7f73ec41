// Package render reflows streamed model output into lines of bounded width.
package render

import (
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// DefaultWidth is the wrap column when the terminal width is unknown.
const DefaultWidth = 100

// Renderer is an io.Writer that buffers text fragments and writes them to
// the underlying writer wrapped at a fixed display width. Words are never
// broken; a word wider than the line gets a line of its own. Newlines in the
// input are kept, so blank lines separate paragraphs as in the source.
//
// The buffer is flushed when it grows past the threshold or receives a
// newline. A trailing partial word is held back until more text or Flush
// arrives. Call Flush at the end of every stream.
type Renderer struct {
	out       io.Writer
	width     int
	threshold int

	buf strings.Builder
	// col is the display width already written on the current output line.
	col int
	// fresh is true until a word is written after an input newline; leading
	// indentation is kept only on fresh lines.
	fresh bool
}

// New returns a Renderer writing to out, wrapping at width columns. A
// non-positive width selects DefaultWidth.
func New(out io.Writer, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{out: out, width: width, threshold: width, fresh: true}
}

// Write buffers p and flushes complete words when the buffer is full or
// holds a newline.
func (r *Renderer) Write(p []byte) (int, error) {
	r.buf.Write(p)
	if r.buf.Len() > r.threshold || strings.ContainsRune(r.buf.String(), '\n') {
		if err := r.flush(false); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes everything still buffered and ends the current line.
func (r *Renderer) Flush() error {
	if err := r.flush(true); err != nil {
		return err
	}
	if r.col > 0 {
		r.col = 0
		_, err := io.WriteString(r.out, "\n")
		return err
	}
	return nil
}

func (r *Renderer) flush(final bool) error {
	text := r.buf.String()
	r.buf.Reset()

	if !final {
		start := strings.LastIndexByte(text, '\n') + 1
		tail := text[start:]
		if (start > 0 || r.fresh) && !strings.ContainsFunc(strings.TrimLeft(tail, " \t"), unicode.IsSpace) {
			// Hold a fresh line until its first word is complete so the
			// indentation goes out with it.
			r.buf.WriteString(tail)
			text = text[:start]
			if text == "" {
				return nil
			}
		} else {
			cut := strings.LastIndexFunc(text, unicode.IsSpace)
			r.buf.WriteString(text[cut+1:])
			text = text[:cut+1]
		}
	}

	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
			r.col = 0
			r.fresh = true
		}
		indented := false
		if r.fresh {
			if indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]; indent != "" && strings.TrimSpace(line) != "" {
				b.WriteString(indent)
				r.col += lipgloss.Width(indent)
				indented = true
			}
		}
		for _, word := range strings.Fields(line) {
			r.fresh = false
			w := lipgloss.Width(word)
			switch {
			case r.col == 0, indented:
				indented = false
			case r.col+1+w > r.width:
				b.WriteByte('\n')
				r.col = 0
			default:
				b.WriteByte(' ')
				r.col++
			}
			b.WriteString(word)
			r.col += w
		}
	}
	if b.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}
