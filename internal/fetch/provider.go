package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/html"
)

var (
	// ErrFetchTimeout means the page never showed a text element within the
	// liveness bound.
	ErrFetchTimeout = errors.New("page did not become ready in time")
	// ErrRendererUnavailable means the renderer itself could not start.
	ErrRendererUnavailable = errors.New("renderer unavailable")
)

// Provider returns a rendered DOM tree for a URL.
type Provider interface {
	Fetch(ctx context.Context, url string) (*html.Node, error)
}

// Renderer selects a Provider implementation.
type Renderer string

const (
	RendererAuto    Renderer = "auto"
	RendererBrowser Renderer = "browser"
	RendererHTTP    Renderer = "http"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options bound and shape a fetch.
type Options struct {
	LivenessTimeout time.Duration
	SettleDelay     time.Duration
	UserAgent       string
	// LivenessTag is the element whose presence marks the page as live.
	LivenessTag       string
	BrowserPath       string
	RequestsPerSecond float64
}

// DefaultOptions mirrors the 30s liveness wait and 5s settle delay.
func DefaultOptions() Options {
	return Options{
		LivenessTimeout:   30 * time.Second,
		SettleDelay:       5 * time.Second,
		UserAgent:         defaultUserAgent,
		LivenessTag:       "span",
		RequestsPerSecond: 0.5,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = def.LivenessTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	if o.LivenessTag == "" {
		o.LivenessTag = def.LivenessTag
	}
	return o
}

// Build assembles the provider chain for a renderer.
func Build(renderer Renderer, opts Options, retries int, backoff time.Duration) (Provider, error) {
	var p Provider
	switch renderer {
	case RendererBrowser:
		p = NewBrowserProvider(opts)
	case RendererHTTP:
		p = NewHTTPProvider(opts, nil)
	case RendererAuto, "":
		p = NewFallbackProvider(NewBrowserProvider(opts), NewHTTPProvider(opts, nil))
	default:
		return nil, fmt.Errorf("unknown renderer %q", renderer)
	}
	if retries > 0 {
		p = NewRetryProvider(p, retries, backoff)
	}
	return p, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
