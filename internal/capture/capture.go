package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"snapshot-stitcher/internal/composite"
	"snapshot-stitcher/internal/encode"
	"snapshot-stitcher/internal/render"
)

type Request struct {
	URL       string
	Strategy  Strategy
	WaitUntil render.WaitCondition
	// WaitFor is an optional CSS selector that must appear before capturing.
	WaitFor string
}

type Result struct {
	Image  []byte
	Format encode.Format

	URL      string
	Strategy Strategy
	Mode     Mode
	Viewport render.Viewport

	// TotalHeight is the logical page height the capture covers.
	TotalHeight int
	// Width and Height are the output dimensions in pixels.
	Width  int
	Height int

	Segments   []Placement
	CapturedAt time.Time
}

type Capturer interface {
	Capture(ctx context.Context, r Request) (*Result, error)
}

type capturer struct {
	launcher render.Launcher
	encoder  encode.Encoder
	config   Config
	log      logr.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewCapturer(launcher render.Launcher, encoder encode.Encoder, config Config, log logr.Logger) Capturer {
	return &capturer{
		launcher: launcher,
		encoder:  encoder,
		config:   config,
		log:      log,
		tracer:   otel.Tracer("snapshot-stitcher/capture"),
		now:      time.Now,
	}
}

func (c *capturer) Capture(ctx context.Context, r Request) (result *Result, err error) {
	if r.Strategy != StrategyNative && r.Strategy != StrategyStitched {
		return nil, fmt.Errorf("invalid method %q: use native or stitched", r.Strategy)
	}
	if r.WaitUntil == "" {
		r.WaitUntil = render.WaitDOMContentLoaded
	}

	ctx, span := c.tracer.Start(ctx, "Capture", trace.WithAttributes(
		attribute.String("url", r.URL),
		attribute.String("strategy", string(r.Strategy)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := c.log.WithValues("url", r.URL, "method", r.Strategy)

	session, err := c.launcher.Launch(ctx, c.config.viewport(r.Strategy))
	if err != nil {
		return nil, fmt.Errorf("failed to start render session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error(err, "failed to close render session")
		}
	}()

	log.Info("navigating", "waitUntil", r.WaitUntil)
	if err := session.Navigate(ctx, r.URL, r.WaitUntil, c.config.NavigationTimeout); err != nil {
		return nil, err
	}

	if r.WaitFor != "" {
		log.Info("waiting for selector", "selector", r.WaitFor)
		if err := session.WaitForSelector(ctx, r.WaitFor, c.config.SelectorTimeout); err != nil {
			return nil, err
		}
	}

	switch r.Strategy {
	case StrategyStitched:
		result, err = c.captureStitched(ctx, session, log)
	default:
		result, err = c.captureNative(ctx, session, log)
	}
	if err != nil {
		return nil, err
	}

	result.URL = r.URL
	result.Strategy = r.Strategy
	result.Viewport = session.Viewport()
	result.Format = c.encoder.Format()
	result.CapturedAt = c.now()
	span.SetAttributes(
		attribute.String("mode", string(result.Mode)),
		attribute.Int("segments", len(result.Segments)),
	)
	return result, nil
}

func (c *capturer) captureNative(ctx context.Context, session *render.Session, log logr.Logger) (*Result, error) {
	if _, err := TriggerLazyContent(ctx, session, c.config, log); err != nil {
		return nil, err
	}
	if err := sleep(ctx, c.config.NativeSettleDelay); err != nil {
		return nil, err
	}

	log.Info("capturing full page natively")
	result, err := c.captureFullPage(ctx, session)
	if err != nil {
		return nil, err
	}
	result.Mode = ModeNative
	return result, nil
}

func (c *capturer) captureStitched(ctx context.Context, session *render.Session, log logr.Logger) (*Result, error) {
	if err := sleep(ctx, c.config.StitchedSettleDelay); err != nil {
		return nil, err
	}

	totalHeight, err := session.ScrollHeight(ctx)
	if err != nil {
		return nil, err
	}
	viewport := session.Viewport()
	log.Info("total page height", "height", totalHeight)

	if SelectMode(totalHeight, viewport.Height) == ModeSingle {
		log.Info("page is small, using simple capture")
		result, err := c.captureFullPage(ctx, session)
		if err != nil {
			return nil, err
		}
		result.Mode = ModeSingle
		result.TotalHeight = totalHeight
		return result, nil
	}

	placements := PlanSegments(totalHeight, viewport.Height, viewport.Scale)
	segments, err := c.captureSegments(ctx, session, placements, totalHeight, log)
	if err != nil {
		return nil, err
	}

	width, height := composite.CanvasSize(viewport.Width, totalHeight, viewport.Scale)
	log.Info("stitching segments", "segments", len(segments), "width", width, "height", height)
	canvas, err := composite.Composite(width, height, segments)
	if err != nil {
		return nil, err
	}

	data, err := c.encoder.Encode(canvas)
	if err != nil {
		return nil, err
	}

	return &Result{
		Image:       data,
		Mode:        ModeSegmented,
		TotalHeight: totalHeight,
		Width:       width,
		Height:      height,
		Segments:    placements,
	}, nil
}

// captureSegments visits each placement in order. Scroll position is shared page state,
// so captures are strictly sequential.
func (c *capturer) captureSegments(ctx context.Context, session *render.Session, placements []Placement, totalHeight int, log logr.Logger) ([]composite.Segment, error) {
	segments := make([]composite.Segment, 0, len(placements))
	for _, p := range placements {
		if err := session.ScrollTo(ctx, p.Offset); err != nil {
			return nil, err
		}
		if err := sleep(ctx, c.config.SegmentSettleDelay); err != nil {
			return nil, err
		}

		log.Info("capturing", "progress", fmt.Sprintf("%d%%", int(math.Round(float64(p.Offset)/float64(totalHeight)*100))))
		shot, err := session.Screenshot(ctx, false)
		if err != nil {
			return nil, err
		}
		img, err := decodeScreenshot(shot)
		if err != nil {
			return nil, fmt.Errorf("segment at offset %d: %w", p.Offset, err)
		}

		segments = append(segments, composite.Segment{
			Image:  img,
			Offset: p.Offset,
			Top:    p.Top,
			Left:   p.Left,
			Height: p.Height,
		})
	}
	return segments, nil
}

func (c *capturer) captureFullPage(ctx context.Context, session *render.Session) (*Result, error) {
	shot, err := session.Screenshot(ctx, true)
	if err != nil {
		return nil, err
	}
	img, err := decodeScreenshot(shot)
	if err != nil {
		return nil, err
	}
	data, err := c.encoder.Encode(img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	scale := session.Viewport().Scale
	if scale <= 0 {
		scale = 1
	}
	return &Result{
		Image:       data,
		TotalHeight: int(math.Round(float64(bounds.Dy()) / scale)),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func decodeScreenshot(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}
