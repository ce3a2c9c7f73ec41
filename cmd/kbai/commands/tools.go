package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/logging"
)

// NewToolsCmd constructs the `kbai tools` command, which prints the catalog
// the model chooses from.
func NewToolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available in tool mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			registry, err := buildRegistry(cmd.Context(), log)
			if err != nil {
				return fmt.Errorf("tools: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(registry.ToolInfos())
			}
			fmt.Fprintln(os.Stdout, registry.RenderCatalog())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tool schemas as JSON")
	cmd.AddCommand(newToolsRunCmd())

	return cmd
}

// newToolsRunCmd constructs `kbai tools run <name> [json-args]`, which calls
// one tool directly without asking the model.
func newToolsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> [json-args]",
		Short: "Call a tool directly with JSON arguments",
		Example: `  kbai tools run list_open_issues '{"repo_name": "octocat/hello-world"}'
  kbai tools run list_user_repos`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			registry, err := buildRegistry(ctx, log)
			if err != nil {
				return fmt.Errorf("tools: %w", err)
			}
			tool, ok := registry.Invokable(args[0])
			if !ok {
				return fmt.Errorf("tools: unknown tool %q (see `kbai tools`)", args[0])
			}
			var in string
			if len(args) == 2 {
				in = args[1]
			}
			out, err := tool.InvokableRun(ctx, in)
			if err != nil {
				return fmt.Errorf("tools: %w", err)
			}
			fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
}
