package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/rag"
	"github.com/54b3r/kbai-go/internal/render"
	"github.com/54b3r/kbai-go/internal/session"
	"github.com/54b3r/kbai-go/internal/tracing"
	"github.com/54b3r/kbai-go/internal/ui"
)

// NewAskCmd constructs the `kbai ask` command, which answers a single
// question and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question against the knowledge base or the GitHub tools",
		Long: `Answer one question and exit. The knowledge store is used as-is;
run 'kbai ingest' first to index new files.

Examples:
  kbai ask "how is the watchdog configured in the code?"
  kbai ask --mode rag "what does the pdf say about calibration?"
  kbai ask --mode tool "list open issues in octocat/hello-world"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			defer tracing.Enable()()

			mode, ok := session.ParseMode(modeFlag)
			if !ok {
				return fmt.Errorf("ask: unknown mode %q (valid values: auto, tool, rag)", modeFlag)
			}

			kb, err := openKnowledgeBase(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer kb.Close()

			registry, err := buildRegistry(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			dispatcher, err := buildDispatcher(ctx, log, kb, registry, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := os.Stdout
			styles := ui.NewStyles(out)
			r := render.New(out, wrapWidth(out))

			outcome, err := dispatcher.Answer(ctx, &session.Session{Mode: mode}, strings.Join(args, " "), r)
			if ferr := r.Flush(); ferr != nil {
				return ferr
			}
			if errors.Is(err, rag.ErrEmptyRetrieval) {
				fmt.Fprintln(out, styles.Warn("No information found in the knowledge base."))
				return nil
			}
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if outcome != nil && outcome.Retrieval != nil {
				if src := styles.Sources(outcome.Retrieval.Citations()); src != "" {
					fmt.Fprintln(out, src)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(session.ModeAuto), "Answer mode: auto, tool or rag")

	return cmd
}
