package render

import (
	"context"
	"fmt"
)

type LauncherConfig struct {
	// Backend is "playwright" or "rod".
	Backend    string
	Playwright PlaywrightConfig
	Rod        RodConfig
}

func NewLauncher(ctx context.Context, c LauncherConfig) (Launcher, error) {
	switch c.Backend {
	case "", "playwright":
		return NewPlaywrightLauncher(ctx, c.Playwright)
	case "rod":
		return NewRodLauncher(ctx, c.Rod)
	default:
		return nil, fmt.Errorf("unknown render backend: %s", c.Backend)
	}
}
