package pipeline

import (
	"errors"
	"math/rand"
	"time"

	"sqldigest/internal/llm"
)

// DefaultMaxAttempts bounds in-run retries of a transient model failure.
// A chunk that exhausts them stays failed until a future invocation.
const DefaultMaxAttempts = 3

// IsRetryable checks if an error is worth retrying within this run.
func IsRetryable(err error) bool {
	var retryErr *llm.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
