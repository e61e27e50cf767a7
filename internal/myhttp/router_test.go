package myhttp_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"snapshot-stitcher/internal/myhttp"
)

func newMux(t *testing.T, output *bytes.Buffer) *myhttp.Router {
	t.Helper()
	histogram, err := noop.NewMeterProvider().Meter("test").Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		t.Fatal(err)
	}
	return myhttp.NewRouter(slog.New(slog.NewJSONHandler(output, nil)), histogram)
}

func TestMiddlewareLogger(t *testing.T) {
	var output bytes.Buffer
	mux := newMux(t, &output)
	mux.HandleFuncWithMiddleware("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		myhttp.Logger(r.Context()).Info("handled")
		w.WriteHeader(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusNoContent {
		t.Errorf("status = %d", recorder.Code)
	}
	if !strings.Contains(output.String(), `"traceid"`) || !strings.Contains(output.String(), `"handled"`) {
		t.Errorf("log = %s", output.String())
	}
}

func TestMiddlewareRecovers(t *testing.T) {
	var output bytes.Buffer
	mux := newMux(t, &output)
	mux.HandleFuncWithMiddleware("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic(42)
	})

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", recorder.Code)
	}
	if !strings.Contains(output.String(), `"stack"`) {
		t.Errorf("log = %s", output.String())
	}
}
