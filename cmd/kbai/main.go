// Command kbai is the entry point for the knowledge-base assistant.
// It provides a CLI interface (via Cobra): an interactive chat loop, one-shot
// questions, ingestion, and an optional local HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/kbai-go/cmd/kbai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
