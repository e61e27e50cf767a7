// Package composite assembles viewport captures into one full-page raster.
package composite

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

var Background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Segment is one viewport capture and where it goes on the canvas.
type Segment struct {
	Image image.Image
	// Offset is the logical scroll offset the capture was taken at.
	Offset int
	// Top and Left are canvas coordinates in scaled pixels.
	Top  int
	Left int
	// Height is the number of scaled rows this segment owns. Zero means the whole image.
	Height int
}

type CompositeBoundsError struct {
	Index  int
	Rect   image.Rectangle
	Canvas image.Rectangle
	Reason string
}

func (e *CompositeBoundsError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("segment %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("segment %d placed at %v does not fit canvas %v", e.Index, e.Rect, e.Canvas)
}

// CanvasSize is (viewportWidth*scale, ceil(totalHeight*scale)).
func CanvasSize(viewportWidth int, totalHeight int, scale float64) (int, int) {
	return int(math.Round(float64(viewportWidth) * scale)), int(math.Ceil(float64(totalHeight) * scale))
}

// Composite draws segments in order onto a white canvas of width x height.
// Later segments overdraw earlier ones where they overlap.
func Composite(width int, height int, segments []Segment) (*image.NRGBA, error) {
	bounds := image.Rect(0, 0, width, height)
	if bounds.Empty() {
		return nil, &CompositeBoundsError{
			Index:  -1,
			Canvas: bounds,
			Reason: fmt.Sprintf("canvas has zero dimensions %dx%d", width, height),
		}
	}

	canvas := image.NewNRGBA(bounds)
	draw.Draw(canvas, bounds, &image.Uniform{C: Background}, image.Point{}, draw.Src)

	for i, s := range segments {
		if s.Image == nil {
			return nil, &CompositeBoundsError{Index: i, Canvas: bounds, Reason: "segment has no image"}
		}

		src := s.Image.Bounds()
		rows := src.Dy()
		if s.Height > 0 && s.Height < rows {
			rows = s.Height
		}

		r := image.Rect(s.Left, s.Top, s.Left+src.Dx(), s.Top+rows)
		if s.Left < 0 || s.Top < 0 || !r.In(bounds) {
			return nil, &CompositeBoundsError{Index: i, Rect: r, Canvas: bounds}
		}

		draw.Draw(canvas, r, s.Image, src.Min, draw.Over)
	}

	return canvas, nil
}
