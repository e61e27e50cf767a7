package capture

import (
	"time"

	"snapshot-stitcher/internal/render"
)

type Config struct {
	// NativeViewport is used for the native strategy, StitchedViewport for the stitched one.
	NativeViewport   render.Viewport
	StitchedViewport render.Viewport

	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration

	// Lazy-content sweep, native strategy only.
	SweepStep     int
	SweepInterval time.Duration
	MaxSweepSteps int

	NativeSettleDelay   time.Duration
	StitchedSettleDelay time.Duration
	SegmentSettleDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		NativeViewport: render.Viewport{
			Width:  1536,
			Height: 960,
			Scale:  2,
		},
		StitchedViewport: render.Viewport{
			Width:  1536,
			Height: 1000,
			Scale:  2,
		},
		NavigationTimeout:   60 * time.Second,
		SelectorTimeout:     60 * time.Second,
		SweepStep:           400,
		SweepInterval:       100 * time.Millisecond,
		MaxSweepSteps:       1000,
		NativeSettleDelay:   2 * time.Second,
		StitchedSettleDelay: 2 * time.Second,
		SegmentSettleDelay:  1200 * time.Millisecond,
	}
}

func (c Config) viewport(s Strategy) render.Viewport {
	if s == StrategyStitched {
		return c.StitchedViewport
	}
	return c.NativeViewport
}
