package capture

import (
	"fmt"
	"math"
)

type Strategy string

const (
	// StrategyNative sweeps the page once, then takes a single full-page capture.
	StrategyNative Strategy = "native"
	// StrategyStitched captures viewport segments at increasing offsets and composites them.
	StrategyStitched Strategy = "stitched"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyNative, StrategyStitched:
		return st, nil
	case "":
		return StrategyNative, nil
	}
	return "", fmt.Errorf("invalid method %q: use native or stitched", s)
}

// Mode is how a capture was actually produced.
type Mode string

const (
	ModeNative    Mode = "native"
	ModeSingle    Mode = "single"
	ModeSegmented Mode = "segmented"
)

// SelectMode picks a single full-page capture when the page fits in one viewport.
func SelectMode(totalHeight int, viewportHeight int) Mode {
	if totalHeight <= viewportHeight {
		return ModeSingle
	}
	return ModeSegmented
}

// Placement is the bookkeeping for one segment of a stitched capture.
type Placement struct {
	// Offset is the logical scroll offset.
	Offset int `json:"offset"`
	// CaptureHeight is the logical height of new content at this offset.
	CaptureHeight int `json:"captureHeight"`
	// Top, Left and Height are scaled canvas coordinates.
	Top    int `json:"top"`
	Left   int `json:"left"`
	Height int `json:"height"`
}

// PlanSegments walks a cursor from 0 to totalHeight in viewport steps.
// It yields ceil(totalHeight/viewportHeight) placements; the last one may be shorter.
func PlanSegments(totalHeight int, viewportHeight int, scale float64) []Placement {
	if totalHeight <= 0 || viewportHeight <= 0 {
		return nil
	}

	var placements []Placement
	cursor := 0
	for cursor < totalHeight {
		captureHeight := min(viewportHeight, totalHeight-cursor)
		top := scaled(cursor, scale)
		placements = append(placements, Placement{
			Offset:        cursor,
			CaptureHeight: captureHeight,
			Top:           top,
			Left:          0,
			Height:        scaled(cursor+captureHeight, scale) - top,
		})

		cursor += captureHeight
	}
	return placements
}

func scaled(v int, scale float64) int {
	return int(math.Round(float64(v) * scale))
}
