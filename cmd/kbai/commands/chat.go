package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/render"
	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tracing"
	"github.com/54b3r/kbai-go/internal/ui"
)

// NewChatCmd constructs the `kbai chat` command: the interactive loop.
func NewChatCmd() *cobra.Command {
	var noIngest bool
	var pdfDir, codeDir string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session over your documents, code and GitHub",
		Long: `Start an interactive question-answering session.

On startup the PDF and source directories are synchronized into the
knowledge store (only new chunks are embedded). Each question is then
answered either from the knowledge base, with citations, or by calling a
GitHub tool, depending on the session mode.

Commands inside the session:
  tool | rag | auto   switch mode
  status             show the current mode
  help               list commands
  exit | quit        leave

Examples:
  kbai chat
  kbai chat --no-ingest
  kbai chat --pdf-dir ./manuals --code-dir ./firmware`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			defer tracing.Enable()()

			kb, err := openKnowledgeBase(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer kb.Close()

			if !noIngest {
				if _, err := runIngestion(ctx, log, kb, ingestConfigFromEnv(pdfDir, codeDir, nil)); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
			}

			registry, err := buildRegistry(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			dispatcher, err := buildDispatcher(ctx, log, kb, registry, nil)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			return runLoop(ctx, dispatcher, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Skip synchronizing the document and code directories on startup")
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "Directory of PDF documents (default: $KBAI_PDF_DIR or ./docs)")
	cmd.Flags().StringVar(&codeDir, "code-dir", "", "Directory of source code (default: $KBAI_CODE_DIR or ./src)")

	return cmd
}

// inputHandler is the dispatcher surface the loop drives.
type inputHandler interface {
	Handle(ctx context.Context, s *session.Session, input string, w io.Writer) (*session.Outcome, error)
}

// runLoop reads one line at a time from in until exit, EOF or cancellation.
// A failing question prints an error and the loop continues.
func runLoop(ctx context.Context, h inputHandler, in io.Reader, out io.Writer) error {
	log := logging.FromContext(ctx)
	styles := ui.NewStyles(out)
	width := wrapWidth(out)

	s := session.New()
	fmt.Fprintln(out, styles.Banner(string(s.Mode)))

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, styles.Prompt(string(s.Mode)))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-readErr
			}
			line = l
		}

		r := render.New(out, width)
		outcome, err := h.Handle(ctx, s, line, r)
		if ferr := r.Flush(); ferr != nil {
			return ferr
		}

		switch {
		case errors.Is(err, rag.ErrEmptyRetrieval):
			fmt.Fprintln(out, styles.Warn("No information found in the knowledge base."))
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(out)
			return nil
		case err != nil:
			log.Debug("chat: question failed", slog.Any("error", err))
			fmt.Fprintln(out, styles.Error(err))
		}
		if outcome == nil {
			continue
		}
		if outcome.Exit {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}
		if err == nil && outcome.Retrieval != nil {
			if src := styles.Sources(outcome.Retrieval.Citations()); src != "" {
				fmt.Fprintln(out, src)
			}
		}
	}
}
