package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sessiontrace/sessiontrace/internal/config"
	"github.com/sessiontrace/sessiontrace/internal/logging"
	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	var format string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "info <file>...",
		Short: "Print a one-line summary per session log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			log, err := logging.New(verbose || cfg.Verbose)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer log.Sync()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tID\tREQUESTS\tTOKENS\tTITLE")

			for _, arg := range args {
				session, err := parseOne(arg, format, log)
				if err != nil {
					return err
				}
				var tokens int64
				for _, req := range session.Requests {
					tokens += req.Usage.PromptTokens + req.Usage.CompletionTokens
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					session.Source, session.ID, len(session.Requests), tokens, session.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "Input encoding (auto/copilot/claude/codex)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
