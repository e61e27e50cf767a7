package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

type RodConfig struct {
	// ControlURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local Chrome.
	ControlURL string
	Headless   bool
	// Stealth opens pages with automation fingerprints removed.
	Stealth bool
}

func DefaultRodConfig() RodConfig {
	return RodConfig{
		Headless: true,
	}
}

type rodLauncher struct {
	config RodConfig
}

func NewRodLauncher(ctx context.Context, r RodConfig) (Launcher, error) {
	return &rodLauncher{
		config: r,
	}, nil
}

func (l *rodLauncher) Launch(ctx context.Context, viewport Viewport) (*Session, error) {
	p := &rodPage{}

	controlURL := l.config.ControlURL
	if controlURL == "" {
		p.launcher = launcher.New().Headless(l.config.Headless)
		u, err := p.launcher.Launch()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", controlURL, err)
	}
	p.browser = browser

	var err error
	if l.config.Stealth {
		p.page, err = stealth.Page(browser)
	} else {
		p.page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	if err := p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewport.Width,
		Height:            viewport.Height,
		DeviceScaleFactor: viewport.Scale,
	}); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set viewport size: %w", err)
	}

	return NewSession(p, viewport), nil
}

type rodPage struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(ctx)
	waitNavigation := page.WaitNavigation(lifecycleEvent(wait))
	if err := page.Navigate(url); err != nil {
		return err
	}
	waitNavigation()
	return ctx.Err()
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (p *rodPage) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	res, err := p.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

func (p *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *rodPage) Close() error {
	var errs []error
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
		p.page = nil
	}
	// Only a browser we launched is ours to shut down.
	if p.launcher != nil {
		if p.browser != nil {
			if err := p.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}
		p.launcher.Cleanup()
		p.launcher = nil
	}
	p.browser = nil
	return errors.Join(errs...)
}

func lifecycleEvent(wait WaitCondition) proto.PageLifecycleEventName {
	switch wait {
	case WaitLoad:
		return proto.PageLifecycleEventNameLoad
	case WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
}
