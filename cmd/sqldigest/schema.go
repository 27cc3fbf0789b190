package main

import (
	"os"

	"github.com/spf13/cobra"

	"sqldigest/internal/config"
	"sqldigest/internal/input"
	"sqldigest/internal/report"
)

func newSchemaCommand() *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "schema <dump-file>",
		Short: "Extract and print the table definitions from a dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			s, err := extractSchema(args[0], input.Options{PDFFallback: cfg.PDFFallbackPdftotext}, cfg.ChunkBytes)
			if err != nil {
				return err
			}

			if markdown {
				return report.WriteSchemaMarkdown(os.Stdout, s)
			}
			report.PrintSchema(os.Stdout, s)
			return nil
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "emit Markdown instead of a console table")

	return cmd
}
