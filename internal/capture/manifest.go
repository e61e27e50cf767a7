package capture

import (
	"time"

	"snapshot-stitcher/internal/render"
)

// Manifest describes how an archived image was produced.
type Manifest struct {
	URL         string          `json:"url"`
	Strategy    Strategy        `json:"strategy"`
	Mode        Mode            `json:"mode"`
	Format      string          `json:"format"`
	Viewport    render.Viewport `json:"viewport"`
	TotalHeight int             `json:"totalHeight"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Segments    []Placement     `json:"segments,omitempty"`
	CapturedAt  time.Time       `json:"capturedAt"`
}

func (r *Result) Manifest() Manifest {
	return Manifest{
		URL:         r.URL,
		Strategy:    r.Strategy,
		Mode:        r.Mode,
		Format:      string(r.Format),
		Viewport:    r.Viewport,
		TotalHeight: r.TotalHeight,
		Width:       r.Width,
		Height:      r.Height,
		Segments:    r.Segments,
		CapturedAt:  r.CapturedAt,
	}
}
