package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/version"
)

// NewVersionCmd constructs `kbai version`.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
