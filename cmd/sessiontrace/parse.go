package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sessiontrace/sessiontrace/internal/config"
	"github.com/sessiontrace/sessiontrace/internal/export"
	"github.com/sessiontrace/sessiontrace/internal/logging"
	"github.com/sessiontrace/sessiontrace/internal/parse"
	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	var format, output string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Normalize session log files and print them as JSON or YAML",
		Long:  `Reads one or more session log files (or "-" for stdin), normalizes each into the shared timeline model, and prints the result. The input encoding is sniffed from the first line unless --format forces one.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if output == "" {
				output = cfg.OutputFormat
			}

			exporter, err := export.NewExporter(output)
			if err != nil {
				return err
			}

			log, err := logging.New(verbose || cfg.Verbose)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer log.Sync()

			for _, arg := range args {
				session, err := parseOne(arg, format, log)
				if err != nil {
					return err
				}
				if err := exporter.Export(session, os.Stdout); err != nil {
					return fmt.Errorf("export %s: %w", arg, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "Input encoding (auto/copilot/claude/codex)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format (json/yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// parseOne reads and normalizes a single file ("-" means stdin).
func parseOne(path, format string, log parse.Logger) (*parse.Session, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	f := parse.Format(format)
	if format == "auto" || format == "" {
		f = parse.DetectFormat(data)
	}

	switch f {
	case parse.FormatCopilot:
		return parse.ParseCopilot(data, log), nil
	case parse.FormatClaude:
		return parse.ParseClaude(data, log), nil
	case parse.FormatCodex:
		return parse.ParseCodex(data, log), nil
	default:
		return nil, fmt.Errorf("%s: unrecognized session log format", path)
	}
}
