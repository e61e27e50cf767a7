package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"time"

	"snapshot-stitcher/internal/render"
)

// fakePage renders a page whose logical row y has gray level rowColor(y).
// Scrolling is clamped to [0, height-viewport.Height] like a browser.
type fakePage struct {
	height   int
	grow     func(height int) int
	viewport render.Viewport

	scrollY         int
	viewportShots   int
	fullPageShots   int
	heightReads     int
	selectorWaits   int
	closed          int
	navigateErr     error
	selectorErr     error
	scrollHeightErr error
}

func rowColor(y int) color.Gray {
	return color.Gray{Y: uint8((y * 7) % 256)}
}

func (p *fakePage) Navigate(ctx context.Context, url string, wait render.WaitCondition, timeout time.Duration) error {
	return p.navigateErr
}

func (p *fakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.selectorWaits++
	return p.selectorErr
}

func (p *fakePage) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	switch {
	case strings.Contains(script, "scrollHeight"):
		p.heightReads++
		if p.scrollHeightErr != nil {
			return nil, p.scrollHeightErr
		}
		if p.grow != nil {
			p.height = p.grow(p.height)
		}
		return float64(p.height), nil
	case strings.Contains(script, "scrollTo"):
		p.scrollY = p.clamp(args[0].(int))
	case strings.Contains(script, "scrollBy"):
		p.scrollY = p.clamp(p.scrollY + args[0].(int))
	default:
		return nil, errors.New("unexpected script")
	}
	return nil, nil
}

func (p *fakePage) clamp(y int) int {
	return max(0, min(y, p.height-p.viewport.Height))
}

func (p *fakePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	scale := p.viewport.Scale
	width := int(math.Round(float64(p.viewport.Width) * scale))

	first, rows := p.scrollY, p.viewport.Height
	if fullPage {
		p.fullPageShots++
		first, rows = 0, max(p.height, p.viewport.Height)
	} else {
		p.viewportShots++
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, int(math.Round(float64(rows)*scale))))
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		c := rowColor(first + int(float64(y)/scale))
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (p *fakePage) Close() error {
	p.closed++
	return nil
}

type fakeLauncher struct {
	page     *fakePage
	launches int
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, viewport render.Viewport) (*render.Session, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	l.page.viewport = viewport
	l.page.scrollY = 0
	return render.NewSession(l.page, viewport), nil
}

func testConfig() Config {
	c := DefaultConfig()
	c.NativeViewport = render.Viewport{Width: 8, Height: 10, Scale: 2}
	c.StitchedViewport = render.Viewport{Width: 8, Height: 10, Scale: 2}
	c.SweepStep = 4
	c.SweepInterval = 0
	c.NativeSettleDelay = 0
	c.StitchedSettleDelay = 0
	c.SegmentSettleDelay = 0
	return c
}
