package callback_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"

	"snapshot-stitcher/internal/callback"
	"snapshot-stitcher/internal/retry"
)

func TestNotify(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payload := map[string]string{"imageURL": "s3://bucket/Snapshot/capture/abc/20260102030405.avif"}
	if err := callback.NewNotifier(server.URL, callback.Options{}).Notify(context.Background(), payload); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("payload (-want +got):\n%s", diff)
	}
}

func TestNotifyRetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := callback.NewNotifier(server.URL, callback.Options{}).Notify(context.Background(), map[string]int{"width": 3072}); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestNotifyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := callback.NewNotifier(server.URL, callback.Options{}).Notify(context.Background(), struct{}{}); err == nil {
		t.Error("expected error")
	}
}

func TestNotifierTimeoutCoversRetries(t *testing.T) {
	n := callback.NewNotifier("http://hooks.invalid", callback.Options{})
	transport, ok := n.Client.Transport.(*retry.Transport)
	if !ok {
		t.Fatalf("Transport = %T", n.Client.Transport)
	}
	if transport.PerTryTimeout != callback.PerTryTimeout {
		t.Errorf("PerTryTimeout = %v", transport.PerTryTimeout)
	}
	// Four attempts plus up to 10ms, 20ms and 40ms of backoff.
	if want := 4*callback.PerTryTimeout + 70*time.Millisecond; n.Client.Timeout != want {
		t.Errorf("Timeout = %v, want %v", n.Client.Timeout, want)
	}
}

func TestNotifyRetryOnAndLogging(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{})

	if err := callback.NewNotifier(server.URL, callback.Options{Log: log}).Notify(context.Background(), struct{}{}); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "retrying request") || !strings.Contains(lines[0], `"status"=429`) {
		t.Errorf("log lines = %q", lines)
	}

	calls.Store(0)
	retryOn, err := retry.ParseOn("gateway-error")
	if err != nil {
		t.Fatal(err)
	}
	if err := callback.NewNotifier(server.URL, callback.Options{RetryOn: retryOn}).Notify(context.Background(), struct{}{}); err == nil {
		t.Error("expected error when 429 is not retried")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
