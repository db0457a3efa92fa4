package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "sessiontrace",
		Short:   "Normalize Copilot, Claude Code and Codex session logs into one timeline model",
		Version: version,
	}

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(infoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
