package render

import (
	"context"
	"fmt"
	"time"
)

type WaitCondition string

const (
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitLoad             WaitCondition = "load"
	WaitNetworkIdle      WaitCondition = "networkidle"
)

func ParseWaitCondition(s string) (WaitCondition, error) {
	switch w := WaitCondition(s); w {
	case WaitDOMContentLoaded, WaitLoad, WaitNetworkIdle:
		return w, nil
	case "":
		return WaitDOMContentLoaded, nil
	}
	return "", fmt.Errorf("invalid wait condition %q: use domcontentloaded, load, or networkidle", s)
}

// Viewport is the logical page size. Captured pixels are Width*Scale by Height*Scale.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// Page is a single browser tab driven by a backend.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate calls the given function expression in the page with args.
	Evaluate(ctx context.Context, script string, args ...any) (any, error)
	// Screenshot returns PNG bytes of the viewport, or of the whole document when fullPage is set.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// Close releases the tab and every browser resource acquired for it.
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, viewport Viewport) (*Session, error)
}
