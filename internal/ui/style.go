// Package ui holds the terminal styling for the interactive chat loop:
// prompt, banners, citation lists and error lines. Styling is switched off
// when the output is not a terminal so piped output stays plain text.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/54b3r/kbai-go/internal/rag"
)

var (
	clrBrand  = lipgloss.Color("39")
	clrGreen  = lipgloss.Color("114")
	clrRed    = lipgloss.Color("203")
	clrYellow = lipgloss.Color("220")
	clrDim    = lipgloss.Color("245")
)

// Styles renders the chat loop's decorations.
type Styles struct {
	enabled bool

	brand   lipgloss.Style
	dim     lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	success lipgloss.Style
}

// NewStyles enables colours only when w is a terminal.
func NewStyles(w io.Writer) Styles {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return newStyles(enabled)
}

func newStyles(enabled bool) Styles {
	s := Styles{enabled: enabled}
	if !enabled {
		noop := lipgloss.NewStyle()
		s.brand, s.dim, s.err, s.warn, s.success = noop, noop, noop, noop, noop
		return s
	}
	s.brand = lipgloss.NewStyle().Bold(true).Foreground(clrBrand)
	s.dim = lipgloss.NewStyle().Foreground(clrDim)
	s.err = lipgloss.NewStyle().Bold(true).Foreground(clrRed)
	s.warn = lipgloss.NewStyle().Foreground(clrYellow)
	s.success = lipgloss.NewStyle().Foreground(clrGreen)
	return s
}

// TerminalWidth returns the column count of w, or fallback when w is not a
// terminal or its size is unknown.
func TerminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fallback
	}
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
		return cols
	}
	return fallback
}

// Banner is printed once when the chat loop starts.
func (s Styles) Banner(mode string) string {
	return fmt.Sprintf("%s %s\n%s",
		s.brand.Render("kbai"),
		s.dim.Render("mode: "+mode),
		s.dim.Render(`Type "help" for commands, "exit" to quit.`),
	)
}

// Prompt is the input prompt, tagged with the current mode.
func (s Styles) Prompt(mode string) string {
	if !s.enabled {
		return fmt.Sprintf("[%s] > ", mode)
	}
	return s.dim.Render("["+mode+"]") + " " + s.brand.Render(">") + " "
}

// Sources renders the citation list shown under a knowledge-base answer.
// It returns "" for no citations.
func (s Styles) Sources(cites []rag.Citation) string {
	if len(cites) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.dim.Render("Sources:"))
	for _, c := range cites {
		b.WriteString("\n")
		b.WriteString(s.dim.Render("  - " + c.String()))
	}
	return b.String()
}

// Error renders an error line.
func (s Styles) Error(err error) string {
	return s.err.Render("Error:") + " " + err.Error()
}

// Warn renders a warning line.
func (s Styles) Warn(msg string) string {
	return s.warn.Render(msg)
}

// Success renders a status line.
func (s Styles) Success(msg string) string {
	return s.success.Render(msg)
}
