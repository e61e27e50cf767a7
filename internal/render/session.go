package render

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	scrollToScript     = `(y) => { window.scrollTo(0, y); }`
	scrollByScript     = `(dy) => { window.scrollBy(0, dy); }`
	scrollHeightScript = `() => document.body.scrollHeight`
)

// Session owns a page and its scroll position for the lifetime of one capture.
// The scroll position is only changed through ScrollTo and ScrollBy.
type Session struct {
	page     Page
	viewport Viewport
	scrollY  int

	closeOnce sync.Once
	closeErr  error
}

func NewSession(page Page, viewport Viewport) *Session {
	return &Session{
		page:     page,
		viewport: viewport,
	}
}

func (s *Session) Viewport() Viewport {
	return s.viewport
}

func (s *Session) Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error {
	if err := s.page.Navigate(ctx, url, wait, timeout); err != nil {
		return &NavigationError{
			URL:       url,
			WaitUntil: wait,
			Timeout:   timeout,
			Err:       err,
		}
	}
	s.scrollY = 0
	return nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.page.WaitForSelector(ctx, selector, timeout); err != nil {
		return &SelectorTimeoutError{
			Selector: selector,
			Timeout:  timeout,
			Err:      err,
		}
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	v, err := s.page.Evaluate(ctx, script, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	return v, nil
}

func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	b, err := s.page.Screenshot(ctx, fullPage)
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return b, nil
}

func (s *Session) ScrollTo(ctx context.Context, y int) error {
	if _, err := s.Evaluate(ctx, scrollToScript, y); err != nil {
		return fmt.Errorf("failed to scroll to %d: %w", y, err)
	}
	s.scrollY = y
	return nil
}

func (s *Session) ScrollBy(ctx context.Context, dy int) error {
	if _, err := s.Evaluate(ctx, scrollByScript, dy); err != nil {
		return fmt.Errorf("failed to scroll by %d: %w", dy, err)
	}
	s.scrollY += dy
	return nil
}

// ScrollY is the last requested scroll offset. The browser may have clamped it.
func (s *Session) ScrollY() int {
	return s.scrollY
}

func (s *Session) ScrollHeight(ctx context.Context) (int, error) {
	v, err := s.Evaluate(ctx, scrollHeightScript)
	if err != nil {
		return 0, fmt.Errorf("failed to measure page height: %w", err)
	}
	h, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("failed to measure page height: %w", err)
	}
	return h, nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float32:
		return int(math.Round(float64(n))), nil
	case float64:
		return int(math.Round(n)), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int(math.Round(f)), nil
	}
	return 0, fmt.Errorf("unexpected numeric value %v (%T)", v, v)
}
