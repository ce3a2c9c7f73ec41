package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/ui"
)

// NewIngestCmd constructs the `kbai ingest` command, which synchronizes the
// PDF and source directories into the knowledge store.
func NewIngestCmd() *cobra.Command {
	var pdfDir, codeDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index PDFs and source files into the knowledge store",
		Long: `Chunk every PDF under the document directory and every source file under
the code directory, and store the chunks that are not stored yet.
Re-running is cheap: existing chunk IDs are skipped without embedding.

Environment variables:
  KBAI_PDF_DIR          PDF directory (default: ./docs)
  KBAI_CODE_DIR         Source directory (default: ./src)
  KBAI_CODE_EXTENSIONS  Comma-separated extensions (default: .c,.cpp,.h,.py,.go)
  KBAI_CHUNK_SIZE       Characters per chunk (default: 1000)
  KBAI_CHUNK_OVERLAP    Characters shared by neighbouring chunks (default: 200)
  STORE_BACKEND         sqlite or qdrant (default: sqlite)
  EMBEDDING_*           Embedding provider overrides

Examples:
  kbai ingest
  kbai ingest --pdf-dir ./manuals --code-dir ./firmware`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			kb, err := openKnowledgeBase(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer kb.Close()

			report, err := runIngestion(ctx, log, kb, ingestConfigFromEnv(pdfDir, codeDir, nil))
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			styles := ui.NewStyles(os.Stdout)
			for _, f := range report.Failed {
				fmt.Fprintln(os.Stdout, styles.Warn(fmt.Sprintf("skipped %s: %v", f.Path, f.Err)))
			}
			fmt.Fprintln(os.Stdout, styles.Success(fmt.Sprintf(
				"%d files, %d chunks, %d new", report.Files, report.Candidates, report.Added)))
			return nil
		},
	}

	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "Directory of PDF documents (default: $KBAI_PDF_DIR or ./docs)")
	cmd.Flags().StringVar(&codeDir, "code-dir", "", "Directory of source code (default: $KBAI_CODE_DIR or ./src)")

	return cmd
}
