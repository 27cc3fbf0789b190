package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"sqldigest/internal/chunker"
	"sqldigest/internal/llm"
)

// sliceSource replays a fixed set of chunks, optionally ending with a
// structural error instead of io.EOF.
type sliceSource struct {
	chunks []chunker.Chunk
	pos    int
	tail   error
}

func (s *sliceSource) Next() (chunker.Chunk, error) {
	if s.pos >= len(s.chunks) {
		if s.tail != nil {
			return chunker.Chunk{}, s.tail
		}
		return chunker.Chunk{}, io.EOF
	}
	ch := s.chunks[s.pos]
	s.pos++
	return ch, nil
}

func sourceOf(n int) *sliceSource {
	var chunks []chunker.Chunk
	for i := 0; i < n; i++ {
		chunks = append(chunks, chunker.Chunk{Index: i, Text: fmt.Sprintf("SELECT %d;", i)})
	}
	return &sliceSource{chunks: chunks}
}

// memStore is an in-memory Store that counts commits.
type memStore struct {
	artifacts map[int]string
	commits   int
	commitErr error
}

func newMemStore() *memStore { return &memStore{artifacts: make(map[int]string)} }

func (m *memStore) Done(index int) bool {
	_, ok := m.artifacts[index]
	return ok
}

func (m *memStore) Load(index int) (string, error) {
	text, ok := m.artifacts[index]
	if !ok {
		return "", fmt.Errorf("no artifact for chunk %d", index)
	}
	return text, nil
}

func (m *memStore) Commit(index int, text string) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.artifacts[index] = text
	m.commits++
	return nil
}

func (m *memStore) Indices() []int {
	var out []int
	for i := range m.artifacts {
		out = append(out, i)
	}
	return out
}

// fakeClient answers every chunk, failing scripted indices. errs values are
// consumed one per call, so a single transient error simulates
// fail-once-then-recover.
type fakeClient struct {
	calls []int
	errs  map[int][]error
}

func newFakeClient() *fakeClient { return &fakeClient{errs: make(map[int][]error)} }

func (f *fakeClient) failWith(index int, errs ...error) {
	f.errs[index] = append(f.errs[index], errs...)
}

func (f *fakeClient) Explain(ctx context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req.Index)
	if queue := f.errs[req.Index]; len(queue) > 0 {
		err := queue[0]
		f.errs[req.Index] = queue[1:]
		return "", err
	}
	return "analysis of chunk " + fmt.Sprint(req.Index), nil
}

func newTestRunner(store Store, client ModelClient, opts Options) *Runner {
	r := NewRunner(store, client, nil, opts)
	r.backoff = func(int) time.Duration { return 0 }
	return r
}

func TestRun_AllChunksSucceed(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	sum, err := r.Run(context.Background(), sourceOf(5), "")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 5 || sum.Done != 5 || sum.Skipped != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(client.calls) != 5 {
		t.Errorf("model called %d times", len(client.calls))
	}
	if got, _ := store.Load(2); got != "analysis of chunk 2" {
		t.Errorf("artifact 2 = %q", got)
	}
	if sum.RunID == "" {
		t.Error("run id missing")
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	if _, err := r.Run(context.Background(), sourceOf(5), ""); err != nil {
		t.Fatal(err)
	}
	firstCalls := len(client.calls)

	sum, err := r.Run(context.Background(), sourceOf(5), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != firstCalls {
		t.Errorf("second run made %d extra model calls", len(client.calls)-firstCalls)
	}
	if sum.Skipped != 5 || sum.Done != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_ResumeAfterInterruption(t *testing.T) {
	store := newMemStore()
	// Chunks 0-2 committed by an earlier, interrupted invocation.
	for i := 0; i < 3; i++ {
		store.artifacts[i] = "analysis of chunk " + fmt.Sprint(i)
	}

	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	sum, err := r.Run(context.Background(), sourceOf(5), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected exactly 2 model calls, got %v", client.calls)
	}
	if client.calls[0] != 3 || client.calls[1] != 4 {
		t.Errorf("called wrong chunks: %v", client.calls)
	}
	if sum.Skipped != 3 || sum.Done != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_NoResumeReprocessesEverything(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 5; i++ {
		store.artifacts[i] = "stale"
	}

	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: false})

	sum, err := r.Run(context.Background(), sourceOf(5), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 5 {
		t.Errorf("model called %d times, want 5", len(client.calls))
	}
	if sum.Done != 5 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if got, _ := store.Load(0); got == "stale" {
		t.Error("artifact 0 not overwritten")
	}
}

func TestRun_PermanentFailureDoesNotStopTheRun(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.failWith(1, errors.New("model not found"))
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	sum, err := r.Run(context.Background(), sourceOf(4), "")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Done != 3 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Index != 1 {
		t.Errorf("failures = %+v", sum.Failures)
	}
	if store.Done(1) {
		t.Error("failed chunk must not have an artifact")
	}
	// Later chunks still ran.
	if !store.Done(2) || !store.Done(3) {
		t.Error("chunks after the failure were not processed")
	}

	// A fresh invocation retries only the failed chunk.
	client.calls = nil
	sum, err = r.Run(context.Background(), sourceOf(4), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 1 || client.calls[0] != 1 {
		t.Errorf("rerun calls = %v", client.calls)
	}
	if sum.Done != 1 || sum.Skipped != 3 {
		t.Errorf("rerun summary = %+v", sum)
	}
}

func TestRun_TransientErrorRetriedWithinRun(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	client.failWith(0,
		&llm.RetryableError{StatusCode: 503, Message: "loading"},
		&llm.RetryableError{StatusCode: 503, Message: "loading"},
	)
	r := newTestRunner(store, client, Options{Model: "m", Resume: true, MaxAttempts: 3})

	sum, err := r.Run(context.Background(), sourceOf(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 3 {
		t.Errorf("model called %d times, want 3", len(client.calls))
	}
	if sum.Done != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_TransientErrorExhaustsAttempts(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	transient := &llm.RetryableError{StatusCode: 503, Message: "loading"}
	client.failWith(0, transient, transient, transient)
	r := newTestRunner(store, client, Options{Model: "m", Resume: true, MaxAttempts: 3})

	sum, err := r.Run(context.Background(), sourceOf(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.calls) != 3 {
		t.Errorf("model called %d times, want 3", len(client.calls))
	}
	if sum.Failed != 1 || sum.Done != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_CommitFailureRecordedAsFailed(t *testing.T) {
	store := newMemStore()
	store.commitErr = errors.New("disk full")
	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	sum, err := r.Run(context.Background(), sourceOf(2), "")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 2 || sum.Done != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_StructuralErrorAborts(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	src := sourceOf(2)
	src.tail = &chunker.SyntaxError{Offset: 42, Construct: "string literal"}

	sum, err := r.Run(context.Background(), src, "")
	if err == nil {
		t.Fatal("expected error")
	}
	var serr *chunker.SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("want *chunker.SyntaxError in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunking failed") {
		t.Errorf("error = %v", err)
	}
	// Chunks before the error were still processed and committed.
	if sum.Done != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_CancellationStopsCleanly(t *testing.T) {
	store := newMemStore()
	client := newFakeClient()
	ctx, cancel := context.WithCancel(context.Background())
	client.failWith(1, context.Canceled)
	r := newTestRunner(store, client, Options{Model: "m", Resume: true})

	// Cancel before the run so chunk 1's error coincides with a dead context.
	cancel()

	_, err := r.Run(ctx, sourceOf(3), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
