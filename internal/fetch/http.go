package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/doridoridoriand/holdwatch/internal/dom"
)

const maxBodyBytes = 8 << 20

// HTTPProvider fetches server-rendered HTML without a browser. It polls the
// URL, paced by a rate limiter, until the liveness element appears.
type HTTPProvider struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewHTTPProvider returns a polling HTTP provider. A nil client uses
// http.DefaultClient.
func NewHTTPProvider(opts Options, client *http.Client) *HTTPProvider {
	opts = opts.withDefaults()
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &HTTPProvider{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, url string) (*html.Node, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.opts.LivenessTimeout)
	defer cancel()

	var lastErr error
	for {
		if err := p.limiter.Wait(pollCtx); err != nil {
			return nil, p.timeoutError(ctx, lastErr)
		}
		root, err := p.get(pollCtx, url)
		if err != nil {
			var status *StatusError
			if errors.As(err, &status) {
				return nil, err
			}
			if pollCtx.Err() != nil {
				return nil, p.timeoutError(ctx, err)
			}
			lastErr = err
			continue
		}
		if dom.HasText(root, p.opts.LivenessTag) {
			return root, nil
		}
		lastErr = fmt.Errorf("no %s element yet", p.opts.LivenessTag)
	}
}

func (p *HTTPProvider) timeoutError(parent context.Context, lastErr error) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w after %s: %v", ErrFetchTimeout, p.opts.LivenessTimeout, lastErr)
	}
	return fmt.Errorf("%w after %s", ErrFetchTimeout, p.opts.LivenessTimeout)
}

func (p *HTTPProvider) get(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &StatusError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	root, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return root, nil
}

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	URL  string
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request %s: unexpected status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }
