package fetch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/net/html"
)

// RetryProvider retries timed-out fetches with exponential backoff.
type RetryProvider struct {
	next     Provider
	attempts int
	backoff  time.Duration
}

// NewRetryProvider allows retries extra attempts after the first, waiting
// backoff, 2*backoff, 4*backoff... between them.
func NewRetryProvider(next Provider, retries int, backoff time.Duration) *RetryProvider {
	if retries < 0 {
		retries = 0
	}
	return &RetryProvider{next: next, attempts: retries + 1, backoff: backoff}
}

func (r *RetryProvider) Fetch(ctx context.Context, url string) (*html.Node, error) {
	var lastErr error
	delay := r.backoff
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
		root, err := r.next.Fetch(ctx, url)
		if err == nil {
			return root, nil
		}
		lastErr = err
		if !errors.Is(err, ErrFetchTimeout) {
			return nil, err
		}
	}
	return nil, lastErr
}
