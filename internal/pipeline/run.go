// Package pipeline drives chunked SQL analysis against a slow model
// endpoint: sequential dispatch, durable per-chunk artifacts, and resumption
// that skips everything already done.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sqldigest/internal/chunker"
	"sqldigest/internal/llm"
)

// ModelClient is the one-shot explanation call. Implementations must not
// retry internally; the runner owns the retry policy.
type ModelClient interface {
	Explain(ctx context.Context, req llm.Request) (string, error)
}

// ChunkSource yields chunks in index order, io.EOF when exhausted.
type ChunkSource interface {
	Next() (chunker.Chunk, error)
}

// Options configures a run.
type Options struct {
	Model       string
	Resume      bool // skip chunks with existing artifacts
	MaxAttempts int  // in-run retries for transient model errors
}

// ChunkFailure records one chunk that did not reach done.
type ChunkFailure struct {
	Index int    `json:"index"`
	Err   string `json:"error"`
}

// Summary is the outcome of one pipeline invocation. A run with failures is
// not an error: the failed chunks are simply retried next time.
type Summary struct {
	RunID    string         `json:"run_id"`
	Total    int            `json:"total"`
	Done     int            `json:"done"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Failures []ChunkFailure `json:"failures,omitempty"`
}

// Runner is the pipeline orchestrator. Single-threaded by design: the model
// endpoint serializes anyway, and artifact numbering plus the run log depend
// on in-order execution.
type Runner struct {
	store   Store
	client  ModelClient
	log     *slog.Logger
	runlog  *slog.Logger
	opts    Options
	backoff func(attempt int) time.Duration
}

func NewRunner(store Store, client ModelClient, log *slog.Logger, opts Options) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		store:   store,
		client:  client,
		log:     log,
		runlog:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts:    opts,
		backoff: Backoff,
	}
}

// SetRunLog directs the append-only per-chunk event trail (start/skip/done/
// failed) to w, normally the run.log file in the output directory.
func (r *Runner) SetRunLog(w io.Writer) {
	r.runlog = slog.New(slog.NewTextHandler(w, nil))
}

// OpenRunLog opens (appending) the run.log file inside dir.
func OpenRunLog(dir string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Run processes every chunk from src in order. Per-chunk failures are
// isolated: the run continues and the summary reports counts. Only
// document-level structural errors and context cancellation abort.
//
// Memory never exceeds the current chunk plus the schema digest.
func (r *Runner) Run(ctx context.Context, src ChunkSource, schemaCtx string) (Summary, error) {
	sum := Summary{RunID: newRunID()}
	r.runlog.Info("run start", "run_id", sum.RunID, "model", r.opts.Model, "resume", r.opts.Resume)

	for {
		ch, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Chunk boundaries can no longer be trusted; abort the run.
			r.runlog.Error("run aborted", "run_id", sum.RunID, "error", err)
			return sum, fmt.Errorf("chunking failed: %w", err)
		}
		sum.Total++

		if r.opts.Resume && r.store.Done(ch.Index) {
			sum.Skipped++
			r.log.Info("chunk already done, skipping", "chunk", ch.Index)
			r.runlog.Info("skip", "run_id", sum.RunID, "chunk", ch.Index)
			continue
		}

		r.log.Info("analyzing chunk", "chunk", ch.Index, "bytes", len(ch.Text))
		r.runlog.Info("start", "run_id", sum.RunID, "chunk", ch.Index, "bytes", len(ch.Text))

		text, err := r.explain(ctx, ch, schemaCtx)
		if err != nil {
			if ctx.Err() != nil {
				r.runlog.Info("run interrupted", "run_id", sum.RunID, "chunk", ch.Index)
				return sum, ctx.Err()
			}
			sum.Failed++
			sum.Failures = append(sum.Failures, ChunkFailure{Index: ch.Index, Err: err.Error()})
			r.log.Error("chunk failed", "chunk", ch.Index, "error", err)
			r.runlog.Error("failed", "run_id", sum.RunID, "chunk", ch.Index, "error", err)
			continue
		}

		if err := r.store.Commit(ch.Index, text); err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, ChunkFailure{Index: ch.Index, Err: err.Error()})
			r.log.Error("artifact commit failed", "chunk", ch.Index, "error", err)
			r.runlog.Error("failed", "run_id", sum.RunID, "chunk", ch.Index, "error", err)
			continue
		}
		sum.Done++
		r.runlog.Info("done", "run_id", sum.RunID, "chunk", ch.Index)
	}

	r.runlog.Info("run finished", "run_id", sum.RunID,
		"total", sum.Total, "done", sum.Done, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// explain calls the model, retrying transient failures with jittered backoff
// up to MaxAttempts. Permanent errors return immediately.
func (r *Runner) explain(ctx context.Context, ch chunker.Chunk, schemaCtx string) (string, error) {
	req := llm.Request{
		Model:         r.opts.Model,
		Index:         ch.Index,
		ChunkText:     ch.Text,
		SchemaContext: schemaCtx,
	}

	var text string
	var err error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		text, err = r.client.Explain(ctx, req)
		if err == nil || !IsRetryable(err) {
			break
		}
		if attempt == r.opts.MaxAttempts-1 {
			break
		}
		r.log.Warn("transient model error, retrying", "chunk", ch.Index, "attempt", attempt, "error", err)
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

func newRunID() string {
	var b [4]byte
	rand.Read(b[:])
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b[:])
}
