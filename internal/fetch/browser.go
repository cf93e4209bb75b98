package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pw "github.com/playwright-community/playwright-go"
	"golang.org/x/net/html"
)

var browserArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

// BrowserProvider renders the page in headless Chromium through Playwright.
// Each Fetch starts and tears down its own browser.
type BrowserProvider struct {
	opts Options
}

// NewBrowserProvider returns a headless browser provider.
func NewBrowserProvider(opts Options) *BrowserProvider {
	return &BrowserProvider{opts: opts.withDefaults()}
}

// Fetch navigates to url, waits for the liveness element and the settle
// delay, and returns the parsed page content.
func (b *BrowserProvider) Fetch(ctx context.Context, url string) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runtime, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: start playwright: %v", ErrRendererUnavailable, err)
	}
	defer runtime.Stop()

	launch := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(true),
		Args:     browserArgs,
	}
	if b.opts.BrowserPath != "" {
		launch.ExecutablePath = pw.String(b.opts.BrowserPath)
	}
	browser, err := runtime.Chromium.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("%w: launch chromium: %v", ErrRendererUnavailable, err)
	}
	defer browser.Close()

	page, err := browser.NewPage(pw.BrowserNewPageOptions{
		UserAgent: pw.String(b.opts.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open page: %v", ErrRendererUnavailable, err)
	}
	defer page.Close()

	timeoutMs := float64(b.opts.LivenessTimeout.Milliseconds())
	if _, err := page.Goto(url, pw.PageGotoOptions{
		Timeout:   pw.Float(timeoutMs),
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, mapBrowserError("navigate", err)
	}

	if _, err := page.WaitForSelector(b.opts.LivenessTag, pw.PageWaitForSelectorOptions{
		State:   pw.WaitForSelectorStateAttached,
		Timeout: pw.Float(timeoutMs),
	}); err != nil {
		return nil, mapBrowserError("wait for "+b.opts.LivenessTag, err)
	}

	if err := sleep(ctx, b.opts.SettleDelay); err != nil {
		return nil, err
	}

	content, err := page.Content()
	if err != nil {
		return nil, mapBrowserError("read content", err)
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	return root, nil
}

func mapBrowserError(step string, err error) error {
	if errors.Is(err, pw.ErrTimeout) {
		return fmt.Errorf("%w: %s: %v", ErrFetchTimeout, step, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}
