package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightConfig struct {
	Headless                  bool
	UserAgent                 string
	ChromeDevtoolsProtocolURL string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		Headless: true,
	}
}

type playwrightLauncher struct {
	config PlaywrightConfig
}

func NewPlaywrightLauncher(ctx context.Context, p PlaywrightConfig) (Launcher, error) {
	return &playwrightLauncher{
		config: p,
	}, nil
}

func (l *playwrightLauncher) Launch(ctx context.Context, viewport Viewport) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	p := &playwrightPage{
		pw:   pw,
		done: make(chan struct{}),
	}

	if l.config.ChromeDevtoolsProtocolURL == "" {
		p.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.config.Headless),
		})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		p.ownsBrowser = true
	} else {
		p.browser, err = pw.Chromium.ConnectOverCDP(l.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to connect to browser via CDP at %s: %w", l.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	options := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  viewport.Width,
			Height: viewport.Height,
		},
		DeviceScaleFactor: playwright.Float(viewport.Scale),
	}
	if l.config.UserAgent != "" {
		options.UserAgent = playwright.String(l.config.UserAgent)
	}

	p.context, err = p.browser.NewContext(options)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	p.page, err = p.context.NewPage()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = p.page.Close()
		case <-p.done:
		}
	}()

	return NewSession(p, viewport), nil
}

type playwrightPage struct {
	pw          *playwright.Playwright
	browser     playwright.Browser
	ownsBrowser bool
	context     playwright.BrowserContext
	page        playwright.Page
	done        chan struct{}
}

func (p *playwrightPage) Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(wait),
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *playwrightPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Evaluate(script, args...)
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
}

func (p *playwrightPage) Close() error {
	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}

	var errs []error
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}
	if p.context != nil {
		if err := p.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser context: %w", err))
		}
	}
	// A browser reached over CDP belongs to someone else.
	if p.browser != nil && p.ownsBrowser {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

func waitUntilState(wait WaitCondition) *playwright.WaitUntilState {
	switch wait {
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

// InstallPlaywright downloads the driver and Chromium if they are missing.
func InstallPlaywright() error {
	if err := playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	}); err != nil {
		return fmt.Errorf("failed to install playwright browsers: %w", err)
	}
	return nil
}
