package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"

	"snapshot-stitcher/internal/archive"
	"snapshot-stitcher/internal/callback"
	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/cmdutil"
	"snapshot-stitcher/internal/diagnose"
	"snapshot-stitcher/internal/env"
	"snapshot-stitcher/internal/logging"
	"snapshot-stitcher/internal/render"
	"snapshot-stitcher/internal/retry"
	"snapshot-stitcher/internal/target"
)

type CaptureOutput struct {
	Path        string              `json:"path,omitempty"`
	ImageURL    string              `json:"imageURL,omitempty"`
	ManifestURL string              `json:"manifestURL,omitempty"`
	URL         string              `json:"url"`
	Strategy    capture.Strategy    `json:"strategy"`
	Mode        capture.Mode        `json:"mode"`
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Segments    []capture.Placement `json:"segments,omitempty"`
}

func main() {
	if err := env.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	var waitUntil string
	var waitFor string
	var diagnostics bool
	var output string
	var archiveMode bool
	var callbackURL string
	var callbackRetryOn string
	var debug bool
	var captureFlags cmdutil.CaptureFlags
	var storageFlags cmdutil.StorageFlags
	flag.StringVar(&waitUntil, "wait", env.OrDefault("WAIT", string(render.WaitDOMContentLoaded)), "Navigation wait condition (domcontentloaded, load or networkidle)")
	flag.StringVar(&waitFor, "wait-for", env.OrDefault("WAIT_FOR", ""), "CSS selector to wait for before capturing")
	flag.BoolVar(&diagnostics, "diagnose", env.OrDefault("DIAGNOSE", false), "Print proxy, DNS and egress IP diagnostics before capturing")
	flag.StringVar(&output, "output", env.OrDefault("OUTPUT", ""), "Output file (default ~/Downloads/<url>.<format>)")
	flag.BoolVar(&archiveMode, "archive", env.OrDefault("ARCHIVE", false), "Store image and manifest under Snapshot/capture/<hash>/<timestamp> in the storage backend instead of writing -output")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.StringVar(&callbackRetryOn, "callback-retry-on", env.OrDefault("CALLBACK_RETRY_ON", ""), "Comma separated callback failures to retry: 5xx, gateway-error, too-many-requests, conflict, connect-failure, attempt-timeout or status codes (default gateway-error,too-many-requests,connect-failure,attempt-timeout)")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logs")
	captureFlags.Register(flag.CommandLine)
	storageFlags.Register(flag.CommandLine, "/tmp")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <url> [native|stitched]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Methods: native (default) for regular pages, stitched for animated or lazy pages")
		flag.PrintDefaults()
	}

	flag.Parse()

	log, err := logging.New(logging.Options{Development: debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 || len(args) > 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, args, runOptions{
		waitUntil:    waitUntil,
		waitFor:      waitFor,
		diagnostics:  diagnostics,
		output:       output,
		archive:      archiveMode,
		callbackURL:  callbackURL,
		retryOn:      callbackRetryOn,
		captureFlags: &captureFlags,
		storageFlags: &storageFlags,
	}); err != nil {
		log.Error(err, "capture failed")
		stop()
		os.Exit(1)
	}
}

type runOptions struct {
	waitUntil    string
	waitFor      string
	diagnostics  bool
	output       string
	archive      bool
	callbackURL  string
	retryOn      string
	captureFlags *cmdutil.CaptureFlags
	storageFlags *cmdutil.StorageFlags
}

func run(ctx context.Context, log logr.Logger, args []string, o runOptions) error {
	url, inferred, err := target.Normalize(args[0])
	if err != nil {
		return err
	}
	if inferred {
		log.Info("no protocol provided", "url", url)
	}

	method := ""
	if len(args) > 1 {
		method = args[1]
	}
	strategy, err := capture.ParseStrategy(method)
	if err != nil {
		return err
	}
	wait, err := render.ParseWaitCondition(o.waitUntil)
	if err != nil {
		return err
	}
	retryOn, err := retry.ParseOn(o.retryOn)
	if err != nil {
		return err
	}

	if o.diagnostics {
		diagnose.NewDiagnoser().Run(ctx, url).Log(log.WithName("diagnose"))
	}

	capturer, encoder, err := o.captureFlags.NewCapturer(ctx, log)
	if err != nil {
		return err
	}

	result, err := capturer.Capture(ctx, capture.Request{
		URL:       url,
		Strategy:  strategy,
		WaitUntil: wait,
		WaitFor:   o.waitFor,
	})
	if err != nil {
		return err
	}

	out := CaptureOutput{
		URL:      result.URL,
		Strategy: result.Strategy,
		Mode:     result.Mode,
		Width:    result.Width,
		Height:   result.Height,
		Segments: result.Segments,
	}

	if o.archive {
		s, err := o.storageFlags.New(ctx)
		if err != nil {
			return xerrors.Errorf("failed to create storage backend: %w", err)
		}
		entry, err := (&archive.Archiver{Storage: s}).Save(ctx, result)
		if err != nil {
			return err
		}
		out.ImageURL = entry.ImageURL
		out.ManifestURL = entry.ManifestURL
	} else {
		path := o.output
		if path == "" {
			path = target.OutputPath("", url, encoder.Format().Extension())
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return xerrors.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(path, result.Image, 0o644); err != nil {
			return xerrors.Errorf("failed to write file: %w", err)
		}
		out.Path = path
	}
	log.Info("saved", "path", out.Path, "imageURL", out.ImageURL, "width", out.Width, "height", out.Height)

	if o.callbackURL != "" {
		if err := callback.NewNotifier(o.callbackURL, callback.Options{RetryOn: retryOn, Log: log}).Notify(ctx, out); err != nil {
			return err
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		return xerrors.Errorf("failed to encode result: %w", err)
	}
	return nil
}
