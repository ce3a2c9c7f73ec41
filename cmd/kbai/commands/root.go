// Package commands defines all Cobra CLI commands for the kbai binary.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/kbai-go/internal/audit"
	"github.com/54b3r/kbai-go/internal/config"
	"github.com/54b3r/kbai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbai",
		Short: "kbai - ask questions about your PDFs, source code and GitHub",
		Long: `kbai is a local assistant over a personal knowledge base.

PDF manuals and source files are chunked and indexed into a local vector
store. Questions are answered from the retrieved chunks with citations, or
routed to GitHub tools (repositories, issues, commits) when they ask about
live repository data.

Settings come from the environment, a .env file in the working directory,
and a YAML config file (~/.kbai/config.yaml), in that order of precedence.
See 'kbai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env never overrides variables already set in the environment.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.kbai/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the config file")

	root.AddCommand(
		NewChatCmd(),
		NewAskCmd(),
		NewIngestCmd(),
		NewToolsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
