package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"sqldigest/internal/chunker"
	"sqldigest/internal/config"
	"sqldigest/internal/input"
	"sqldigest/internal/llm"
	"sqldigest/internal/pipeline"
	"sqldigest/internal/report"
	"sqldigest/internal/schema"
)

type analyzeCommand struct {
	outDir     string
	model      string
	chunkBytes int
	noResume   bool
	html       bool
}

func newAnalyzeCommand() *cobra.Command {
	ac := &analyzeCommand{}

	cmd := &cobra.Command{
		Use:   "analyze <dump-file>",
		Short: "Chunk a SQL dump and explain it with the model",
		Long: `Analyze splits the dump into statement-aligned chunks and asks the model
to explain each one. Each answer is committed to the output directory
before the next chunk is dispatched, so a rerun after an interruption
skips everything already done. Use --no-resume to reprocess from scratch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ac.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&ac.outDir, "out", "o", "", "output directory (default from SQLDIGEST_OUTDIR)")
	cmd.Flags().StringVarP(&ac.model, "model", "m", "", "Ollama model name (default from SQLDIGEST_MODEL)")
	cmd.Flags().IntVar(&ac.chunkBytes, "chunk-bytes", 0, "max chunk size in bytes (default from SQLDIGEST_CHUNK_BYTES)")
	cmd.Flags().BoolVar(&ac.noResume, "no-resume", false, "ignore existing artifacts and reprocess every chunk")
	cmd.Flags().BoolVar(&ac.html, "html", false, "also render reports as HTML")

	return cmd
}

func (ac *analyzeCommand) run(path string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ac.outDir != "" {
		cfg.OutDir = ac.outDir
	}
	if ac.model != "" {
		cfg.Model = ac.model
	}
	if ac.chunkBytes > 0 {
		cfg.ChunkBytes = ac.chunkBytes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inOpts := input.Options{PDFFallback: cfg.PDFFallbackPdftotext}

	// First pass: schema context from the whole dump, one chunk in memory
	// at a time.
	dumpSchema, err := extractSchema(path, inOpts, cfg.ChunkBytes)
	if err != nil {
		return err
	}
	log.Info("schema extracted", "tables", len(dumpSchema.Tables))

	store, err := pipeline.OpenFSStore(cfg.OutDir, log)
	if err != nil {
		return err
	}

	client := llm.NewClient(cfg.OllamaURL, cfg.RequestTimeout)
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		log.Warn("model endpoint not reachable, analysis will retry per chunk",
			"url", cfg.OllamaURL, "error", err)
	}

	runner := pipeline.NewRunner(store, client, log, pipeline.Options{
		Model:       cfg.Model,
		Resume:      !ac.noResume,
		MaxAttempts: cfg.MaxAttempts,
	})

	runlog, err := pipeline.OpenRunLog(cfg.OutDir)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer runlog.Close()
	runner.SetRunLog(runlog)

	// Second pass: the analysis itself.
	r, err := input.Open(path, inOpts)
	if err != nil {
		return err
	}
	defer r.Close()

	sum, runErr := runner.Run(ctx, chunker.NewScanner(r, cfg.ChunkBytes), dumpSchema.Context())

	// Reports reflect whatever completed, interrupted or not.
	if err := writeOutputs(cfg.OutDir, sum, dumpSchema, store, ac.html); err != nil {
		return err
	}
	report.PrintRunSummary(os.Stdout, sum, client.Stats.Snapshot())

	if runErr != nil {
		return runErr
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d chunks failed; rerun to retry them", sum.Failed, sum.Total)
	}
	return nil
}

// extractSchema streams the dump once and collects table definitions. Chunks
// align to statement boundaries, so no CREATE TABLE is ever split across two
// extraction calls.
func extractSchema(path string, opts input.Options, chunkBytes int) (*schema.Schema, error) {
	r, err := input.Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	merged := &schema.Schema{}
	sc := chunker.NewScanner(r, chunkBytes)
	for {
		ch, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chunking failed: %w", err)
		}
		part := schema.Extract(ch.Text)
		merged.Tables = append(merged.Tables, part.Tables...)
	}
	return merged, nil
}

func writeOutputs(dir string, sum pipeline.Summary, s *schema.Schema, store pipeline.Store, html bool) error {
	sumJSON, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), sumJSON, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}

	if err := writeReport(filepath.Join(dir, "schema.md"), func(w io.Writer) error {
		return report.WriteSchemaMarkdown(w, s)
	}); err != nil {
		return err
	}
	if err := writeReport(filepath.Join(dir, "combined.md"), func(w io.Writer) error {
		return report.WriteCombined(w, store, sum.Total)
	}); err != nil {
		return err
	}

	if html {
		for _, conv := range []struct{ src, dest, title string }{
			{"schema.md", "schema.html", "Database Schema"},
			{"combined.md", "combined.html", "Combined Analysis"},
		} {
			md, err := os.ReadFile(filepath.Join(dir, conv.src))
			if err != nil {
				return err
			}
			if err := writeReport(filepath.Join(dir, conv.dest), func(w io.Writer) error {
				return report.RenderHTML(w, conv.title, md)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeReport(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
