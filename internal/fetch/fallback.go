package fetch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/net/html"
)

// FallbackProvider delegates to primary, then secondary when the primary
// renderer cannot run at all.
type FallbackProvider struct {
	primary   Provider
	secondary Provider
}

// NewFallbackProvider wraps primary with a secondary fallback.
func NewFallbackProvider(primary, secondary Provider) *FallbackProvider {
	return &FallbackProvider{primary: primary, secondary: secondary}
}

// Fetch uses the primary provider and falls back on renderer startup errors.
// Page-level failures such as timeouts are returned as-is.
func (p *FallbackProvider) Fetch(ctx context.Context, url string) (*html.Node, error) {
	root, err := p.primary.Fetch(ctx, url)
	if err == nil || !isRendererError(err) {
		return root, err
	}
	return p.secondary.Fetch(ctx, url)
}

func isRendererError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRendererUnavailable) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "executable doesn't exist") || strings.Contains(msg, "permission denied")
}
