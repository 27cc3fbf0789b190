// Command sqldigest chunks a SQL dump, explains each chunk with a local
// model, and renders the results as reports.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	// A .env next to the binary is a convenience, not a requirement.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "sqldigest",
		Short: "Analyze large SQL dumps with a local LLM",
		Long: `sqldigest splits a SQL dump into statement-aligned chunks, sends each
chunk to a local Ollama model for explanation, and assembles the answers
into schema and analysis reports. Interrupted runs resume where they left
off: every finished chunk is already on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDetectCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. JSON on stderr so stdout stays clean
// for report output.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
