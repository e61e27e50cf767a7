// Package cmdutil holds the flags and wiring shared by the binaries.
package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"

	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/encode"
	"snapshot-stitcher/internal/env"
	"snapshot-stitcher/internal/render"
	"snapshot-stitcher/internal/storage"
)

type CaptureFlags struct {
	Backend                   string
	ChromeDevtoolsProtocolURL string
	UserAgent                 string
	Stealth                   bool
	Install                   bool
	Format                    string
	Quality                   int
	NavigationTimeout         time.Duration
	SelectorTimeout           time.Duration
	SegmentSettleDelay        time.Duration
}

func (f *CaptureFlags) Register(fs *flag.FlagSet) {
	defaults := capture.DefaultConfig()
	fs.StringVar(&f.Backend, "backend", env.OrDefault("BACKEND", "playwright"), "Browser automation backend (playwright or rod)")
	fs.StringVar(&f.ChromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	fs.StringVar(&f.UserAgent, "user-agent", env.OrDefault("USER_AGENT", ""), "User-Agent string to use for requests (playwright backend)")
	fs.BoolVar(&f.Stealth, "stealth", env.OrDefault("STEALTH", false), "Hide automation fingerprints (rod backend)")
	fs.BoolVar(&f.Install, "install", env.OrDefault("INSTALL_BROWSERS", true), "Install playwright browsers before launching")
	fs.StringVar(&f.Format, "format", env.OrDefault("FORMAT", string(encode.FormatAVIF)), "Output format (avif, jpeg or png)")
	fs.IntVar(&f.Quality, "quality", env.OrDefault("QUALITY", encode.DefaultQuality), "Output quality (1-100)")
	fs.DurationVar(&f.NavigationTimeout, "navigation-timeout", env.OrDefault("NAVIGATION_TIMEOUT", defaults.NavigationTimeout), "Navigation timeout")
	fs.DurationVar(&f.SelectorTimeout, "selector-timeout", env.OrDefault("SELECTOR_TIMEOUT", defaults.SelectorTimeout), "Timeout for --wait-for")
	fs.DurationVar(&f.SegmentSettleDelay, "segment-settle-delay", env.OrDefault("SEGMENT_SETTLE_DELAY", defaults.SegmentSettleDelay), "Delay after each scroll of a stitched capture")
}

// Config applies the flags to capture.DefaultConfig.
func (f *CaptureFlags) Config() capture.Config {
	c := capture.DefaultConfig()
	if f.NavigationTimeout > 0 {
		c.NavigationTimeout = f.NavigationTimeout
	}
	if f.SelectorTimeout > 0 {
		c.SelectorTimeout = f.SelectorTimeout
	}
	if f.SegmentSettleDelay > 0 {
		c.SegmentSettleDelay = f.SegmentSettleDelay
	}
	return c
}

func (f *CaptureFlags) LauncherConfig() render.LauncherConfig {
	playwrightConfig := render.DefaultPlaywrightConfig()
	if f.ChromeDevtoolsProtocolURL != "" {
		playwrightConfig.ChromeDevtoolsProtocolURL = f.ChromeDevtoolsProtocolURL
	}
	if display := os.Getenv("DISPLAY"); display != "" {
		playwrightConfig.Headless = false
	}
	if f.UserAgent != "" {
		playwrightConfig.UserAgent = f.UserAgent
	}

	rodConfig := render.DefaultRodConfig()
	rodConfig.ControlURL = f.ChromeDevtoolsProtocolURL
	rodConfig.Stealth = f.Stealth
	rodConfig.Headless = playwrightConfig.Headless

	return render.LauncherConfig{
		Backend:    f.Backend,
		Playwright: playwrightConfig,
		Rod:        rodConfig,
	}
}

// NewCapturer builds the launcher, encoder and capturer the flags describe.
func (f *CaptureFlags) NewCapturer(ctx context.Context, log logr.Logger) (capture.Capturer, encode.Encoder, error) {
	format, err := encode.ParseFormat(f.Format)
	if err != nil {
		return nil, nil, err
	}
	encoder, err := encode.New(format, f.Quality)
	if err != nil {
		return nil, nil, err
	}

	launcherConfig := f.LauncherConfig()
	if f.Install && (launcherConfig.Backend == "" || launcherConfig.Backend == "playwright") && launcherConfig.Playwright.ChromeDevtoolsProtocolURL == "" {
		if err := render.InstallPlaywright(); err != nil {
			return nil, nil, err
		}
	}
	launcher, err := render.NewLauncher(ctx, launcherConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize launcher: %w", err)
	}

	return capture.NewCapturer(launcher, encoder, f.Config(), log), encoder, nil
}

type StorageFlags struct {
	Backend   string
	Directory string
	Bucket    string
	Prefix    string
	Endpoint  string
}

func (f *StorageFlags) Register(fs *flag.FlagSet, defaultDirectory string) {
	fs.StringVar(&f.Backend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	fs.StringVar(&f.Directory, "directory", env.OrDefault("DIRECTORY", defaultDirectory), "Output directory for the file backend")
	fs.StringVar(&f.Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket for the s3 backend")
	fs.StringVar(&f.Prefix, "s3-prefix", env.OrDefault("S3_PREFIX", ""), "Key prefix for the s3 backend")
	fs.StringVar(&f.Endpoint, "s3-endpoint-url", env.OrDefault("S3_ENDPOINT_URL", ""), "Endpoint of an S3 compatible service, addressed path style")
}

func (f *StorageFlags) New(ctx context.Context) (storage.Storage, error) {
	return storage.New(ctx, storage.Config{
		Backend: f.Backend,
		File:    storage.FileConfig{Directory: f.Directory},
		S3:      storage.S3Config{Bucket: f.Bucket, Prefix: f.Prefix, Endpoint: f.Endpoint},
	})
}
