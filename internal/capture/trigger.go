package capture

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"snapshot-stitcher/internal/render"
)

// TriggerLazyContent scrolls down in SweepStep increments every SweepInterval until the
// distance scrolled reaches the document height, then scrolls back to the top.
// The height is re-read on every step so pages that grow while loading are fully swept;
// MaxSweepSteps bounds pages that never stop growing. Page errors end the sweep early and
// are only logged. It returns the number of steps taken.
func TriggerLazyContent(ctx context.Context, session *render.Session, config Config, log logr.Logger) (int, error) {
	if config.SweepStep <= 0 {
		config.SweepStep = DefaultConfig().SweepStep
	}

	distance := 0
	steps := 0

	for config.MaxSweepSteps <= 0 || steps < config.MaxSweepSteps {
		if err := sleep(ctx, config.SweepInterval); err != nil {
			return steps, err
		}

		height, err := session.ScrollHeight(ctx)
		if err != nil {
			log.Error(err, "lazy content sweep stopped early", "steps", steps)
			break
		}
		if err := session.ScrollBy(ctx, config.SweepStep); err != nil {
			log.Error(err, "lazy content sweep stopped early", "steps", steps)
			break
		}
		distance += config.SweepStep
		steps++

		if distance >= height {
			break
		}
	}

	if err := session.ScrollTo(ctx, 0); err != nil {
		log.Error(err, "failed to scroll back to top")
	}
	if err := ctx.Err(); err != nil {
		return steps, err
	}

	log.V(1).Info("lazy content sweep finished", "steps", steps, "distance", distance)
	return steps, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
