package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExplain_Success(t *testing.T) {
	var gotPath string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`{"response":"This fragment creates the users table."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	out, err := c.Explain(context.Background(), Request{
		Model:         "qwen2.5-coder:14b",
		Index:         3,
		ChunkText:     "CREATE TABLE users (id INT);",
		SchemaContext: "users(id) pk=id\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "This fragment creates the users table." {
		t.Errorf("unexpected response: %q", out)
	}
	if gotPath != "/api/generate" {
		t.Errorf("path = %q", gotPath)
	}
	for _, want := range []string{"qwen2.5-coder:14b", "FRAGMENT #3", "users(id)"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
	if c.Stats.Snapshot().Count != 1 {
		t.Errorf("expected 1 latency sample")
	}
}

func TestExplain_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Explain(context.Background(), Request{Model: "m", ChunkText: "SELECT 1;"})
	var rerr *RetryableError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RetryableError, got %v", err)
	}
	if rerr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rerr.StatusCode)
	}
}

func TestExplain_ConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, time.Second)
	_, err := c.Explain(context.Background(), Request{Model: "m", ChunkText: "SELECT 1;"})
	var rerr *RetryableError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RetryableError, got %v", err)
	}
}

func TestExplain_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Explain(context.Background(), Request{Model: "nope", ChunkText: "SELECT 1;"})
	if err == nil {
		t.Fatal("expected error")
	}
	var rerr *RetryableError
	if errors.As(err, &rerr) {
		t.Fatalf("4xx should not be retryable: %v", err)
	}
}

func TestExplain_ModelErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Explain(context.Background(), Request{Model: "m", ChunkText: "SELECT 1;"})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected model error, got %v", err)
	}
}
