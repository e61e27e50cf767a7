package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"snapshot-stitcher/internal/render"
)

func newTestSession(page *fakePage) *render.Session {
	viewport := render.Viewport{Width: 8, Height: 10, Scale: 2}
	page.viewport = viewport
	return render.NewSession(page, viewport)
}

func TestTriggerLazyContent(t *testing.T) {
	t.Run("StaticPage", func(t *testing.T) {
		page := &fakePage{height: 25}
		steps, err := TriggerLazyContent(context.Background(), newTestSession(page), testConfig(), logr.Discard())
		if err != nil {
			t.Fatal(err)
		}
		if steps != 7 {
			t.Errorf("steps = %d, want 7", steps)
		}
		if page.scrollY != 0 {
			t.Errorf("scrollY = %d, want 0", page.scrollY)
		}
	})

	t.Run("GrowingPage", func(t *testing.T) {
		page := &fakePage{
			height: 10,
			grow: func(height int) int {
				return min(height+4, 40)
			},
		}
		steps, err := TriggerLazyContent(context.Background(), newTestSession(page), testConfig(), logr.Discard())
		if err != nil {
			t.Fatal(err)
		}
		// The sweep follows the page until it stops growing at 40.
		if steps != 10 {
			t.Errorf("steps = %d, want 10", steps)
		}
		if page.heightReads != 10 {
			t.Errorf("height reads = %d, want 10", page.heightReads)
		}
	})

	t.Run("EndlessPage", func(t *testing.T) {
		page := &fakePage{
			height: 10,
			grow: func(height int) int {
				return height + 100
			},
		}
		config := testConfig()
		config.MaxSweepSteps = 5

		steps, err := TriggerLazyContent(context.Background(), newTestSession(page), config, logr.Discard())
		if err != nil {
			t.Fatal(err)
		}
		if steps != 5 {
			t.Errorf("steps = %d, want 5", steps)
		}
		if page.scrollY != 0 {
			t.Errorf("scrollY = %d, want 0", page.scrollY)
		}
	})

	t.Run("PageErrorEndsSweep", func(t *testing.T) {
		page := &fakePage{height: 25, scrollHeightErr: errors.New("execution context destroyed")}
		steps, err := TriggerLazyContent(context.Background(), newTestSession(page), testConfig(), logr.Discard())
		if err != nil {
			t.Fatalf("sweep errors must not fail the capture: %v", err)
		}
		if steps != 0 {
			t.Errorf("steps = %d, want 0", steps)
		}
	})

	t.Run("DefaultStep", func(t *testing.T) {
		page := &fakePage{height: 1000}
		config := testConfig()
		config.SweepStep = 0

		steps, err := TriggerLazyContent(context.Background(), newTestSession(page), config, logr.Discard())
		if err != nil {
			t.Fatal(err)
		}
		// 400, 800, 1200
		if steps != 3 {
			t.Errorf("steps = %d, want 3", steps)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		page := &fakePage{height: 25}
		config := testConfig()
		config.SweepInterval = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := TriggerLazyContent(ctx, newTestSession(page), config, logr.Discard()); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestSleep(t *testing.T) {
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("sleep(0) = %v", err)
	}
	if err := sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleep(1ms) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep on canceled context = %v", err)
	}
}
