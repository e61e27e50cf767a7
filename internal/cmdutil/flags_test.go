package cmdutil_test

import (
	"flag"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/cmdutil"
	"snapshot-stitcher/internal/render"
)

func TestCaptureFlags(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("QUALITY", "60")

	var f cmdutil.CaptureFlags
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	f.Register(fs)
	if err := fs.Parse([]string{"-backend", "rod", "-stealth", "-chrome-devtools-protocol-url", "ws://127.0.0.1:9222/devtools/browser/x", "-segment-settle-delay", "2s"}); err != nil {
		t.Fatal(err)
	}

	if f.Quality != 60 {
		t.Errorf("Quality = %d, want 60 from the environment", f.Quality)
	}

	want := capture.DefaultConfig()
	want.SegmentSettleDelay = 2 * time.Second
	if diff := cmp.Diff(want, f.Config()); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}

	wantLauncher := render.LauncherConfig{
		Backend: "rod",
		Playwright: render.PlaywrightConfig{
			Headless:                  true,
			ChromeDevtoolsProtocolURL: "ws://127.0.0.1:9222/devtools/browser/x",
		},
		Rod: render.RodConfig{
			ControlURL: "ws://127.0.0.1:9222/devtools/browser/x",
			Headless:   true,
			Stealth:    true,
		},
	}
	if diff := cmp.Diff(wantLauncher, f.LauncherConfig()); diff != "" {
		t.Errorf("launcher config (-want +got):\n%s", diff)
	}
}

func TestStorageFlags(t *testing.T) {
	var f cmdutil.StorageFlags
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	f.Register(fs, t.TempDir())
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if f.Backend != "file" {
		t.Errorf("Backend = %q", f.Backend)
	}
	if _, err := f.New(t.Context()); err != nil {
		t.Fatal(err)
	}
}

func TestStorageFlagsS3(t *testing.T) {
	var f cmdutil.StorageFlags
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	f.Register(fs, t.TempDir())
	if err := fs.Parse([]string{"-storage-backend", "s3", "-s3-prefix", "team", "-s3-endpoint-url", "http://minio:9000"}); err != nil {
		t.Fatal(err)
	}
	if f.Backend != "s3" || f.Prefix != "team" || f.Endpoint != "http://minio:9000" {
		t.Errorf("flags = %+v", f)
	}
	if _, err := f.New(t.Context()); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}
