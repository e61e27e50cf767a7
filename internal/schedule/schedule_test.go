package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"snapshot-stitcher/internal/archive"
	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/encode"
	"snapshot-stitcher/internal/render"
	"snapshot-stitcher/internal/schedule"
)

const jobsYAML = `
jobs:
  - name: pricing
    url: example.com/pricing
    schedule: "0 * * * *"
    strategy: stitched
    waitUntil: networkidle
    waitFor: "#plans"
  - url: http://localhost:3000
    schedule: "*/15 * * * *"
`

func TestParse(t *testing.T) {
	config, err := schedule.Parse([]byte(jobsYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(config.Jobs) != 2 {
		t.Fatalf("jobs = %d", len(config.Jobs))
	}

	want := []capture.Request{
		{URL: "https://example.com/pricing", Strategy: capture.StrategyStitched, WaitUntil: render.WaitNetworkIdle, WaitFor: "#plans"},
		{URL: "http://localhost:3000", Strategy: capture.StrategyNative, WaitUntil: render.WaitDOMContentLoaded},
	}
	var got []capture.Request
	for _, job := range config.Jobs {
		got = append(got, job.Request())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
	if config.Jobs[1].Name != "http://localhost:3000" {
		t.Errorf("default name = %q", config.Jobs[1].Name)
	}

	from := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	wantNext := []time.Time{
		time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(wantNext, config.Jobs[0].Next(from, 2)); diff != "" {
		t.Errorf("next (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"Empty":           `jobs: []`,
		"InvalidYAML":     `jobs: [`,
		"SecondsField":    "jobs:\n  - url: example.com\n    schedule: \"0 0 * * * *\"\n",
		"InvalidStrategy": "jobs:\n  - url: example.com\n    schedule: \"@daily\"\n    strategy: tiled\n",
		"InvalidWait":     "jobs:\n  - url: example.com\n    schedule: \"@daily\"\n    waitUntil: idle\n",
		"MissingURL":      "jobs:\n  - name: nothing\n    schedule: \"@daily\"\n",
		"DuplicateName":   "jobs:\n  - url: example.com\n    schedule: \"@daily\"\n  - url: example.com\n    schedule: \"@hourly\"\n",
		"InvalidRetryOn":  "jobs:\n  - url: example.com\n    schedule: \"@daily\"\n    callbackURL: http://hooks.invalid\n    callbackRetryOn: sometimes\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := schedule.Parse([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type capturerMock struct {
	mu       sync.Mutex
	requests []capture.Request
	active   int
	overlap  bool
	err      error
}

func (c *capturerMock) Capture(ctx context.Context, r capture.Request) (*capture.Result, error) {
	c.mu.Lock()
	c.active++
	if c.active > 1 {
		c.overlap = true
	}
	c.requests = append(c.requests, r)
	c.mu.Unlock()

	time.Sleep(time.Millisecond)

	c.mu.Lock()
	c.active--
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	return &capture.Result{
		Image:      []byte("avif"),
		Format:     encode.FormatAVIF,
		URL:        r.URL,
		Strategy:   r.Strategy,
		Mode:       capture.ModeNative,
		CapturedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

type storageMock struct {
	mu   sync.Mutex
	keys []string
}

func (s *storageMock) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "mem://" + key, nil
}

func (s *storageMock) Get(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestRunAll(t *testing.T) {
	config, err := schedule.Parse([]byte(jobsYAML))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &capturerMock{}
	s := &storageMock{}
	runner := &schedule.Runner{Capturer: capturer, Archiver: &archive.Archiver{Storage: s, SkipManifest: true}, Log: logr.Discard()}

	scheduler, err := schedule.New(config, runner, logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := scheduler.RunAll(context.Background(), config); err != nil {
		t.Fatal(err)
	}

	if len(capturer.requests) != 2 || len(s.keys) != 2 {
		t.Errorf("captures = %d, stored = %d", len(capturer.requests), len(s.keys))
	}
}

func TestRunnerCallbackRetryOn(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	for _, tt := range []struct {
		retryOn string
		want    int32
	}{
		{retryOn: "", want: 1},
		{retryOn: "conflict", want: 2},
		{retryOn: "409", want: 2},
	} {
		calls.Store(0)
		config, err := schedule.Parse([]byte(fmt.Sprintf("jobs:\n  - url: example.com\n    schedule: \"@daily\"\n    callbackURL: %s\n    callbackRetryOn: %q\n", server.URL, tt.retryOn)))
		if err != nil {
			t.Fatal(err)
		}
		runner := &schedule.Runner{Capturer: &capturerMock{}, Archiver: &archive.Archiver{Storage: &storageMock{}, SkipManifest: true}, Log: logr.Discard()}
		if _, err := runner.Run(context.Background(), config.Jobs[0]); err != nil {
			t.Fatal(err)
		}
		if got := calls.Load(); got != tt.want {
			t.Errorf("callbackRetryOn %q: calls = %d, want %d", tt.retryOn, got, tt.want)
		}
	}
}

func TestRunnerSerializesCaptures(t *testing.T) {
	config, err := schedule.Parse([]byte(jobsYAML))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &capturerMock{}
	runner := &schedule.Runner{Capturer: capturer, Archiver: &archive.Archiver{Storage: &storageMock{}}, Log: logr.Discard()}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(job *schedule.Job) {
			defer wg.Done()
			if _, err := runner.Run(context.Background(), job); err != nil {
				t.Error(err)
			}
		}(config.Jobs[i%len(config.Jobs)])
	}
	wg.Wait()

	if capturer.overlap {
		t.Error("captures overlapped")
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	config, err := schedule.Parse([]byte(jobsYAML))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &capturerMock{err: errors.New("navigation failed")}
	runner := &schedule.Runner{Capturer: capturer, Archiver: &archive.Archiver{Storage: &storageMock{}}, Log: logr.Discard()}

	scheduler, err := schedule.New(config, runner, logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := scheduler.RunAll(context.Background(), config); err == nil {
		t.Error("expected error")
	}
	// A failing job does not stop the ones after it.
	if len(capturer.requests) != 2 {
		t.Errorf("captures = %d, want 2", len(capturer.requests))
	}
}

func TestStartStops(t *testing.T) {
	config, err := schedule.Parse([]byte(jobsYAML))
	if err != nil {
		t.Fatal(err)
	}
	runner := &schedule.Runner{Capturer: &capturerMock{}, Archiver: &archive.Archiver{Storage: &storageMock{}}, Log: logr.Discard()}
	scheduler, err := schedule.New(config, runner, logr.Discard())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
