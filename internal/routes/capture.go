package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"snapshot-stitcher/internal/archive"
	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/myhttp"
	"snapshot-stitcher/internal/render"
	"snapshot-stitcher/internal/target"
)

type CaptureRequest struct {
	URL       string `json:"url"`
	Strategy  string `json:"strategy"`
	WaitUntil string `json:"waitUntil"`
	WaitFor   string `json:"waitFor"`
}

type CaptureResponse struct {
	ImageURL    string              `json:"imageURL"`
	ManifestURL string              `json:"manifestURL,omitempty"`
	URL         string              `json:"url"`
	Strategy    capture.Strategy    `json:"strategy"`
	Mode        capture.Mode        `json:"mode"`
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Segments    []capture.Placement `json:"segments,omitempty"`
}

type CaptureMetrics struct {
	Duration metric.Int64Histogram
	Segments metric.Int64Histogram
}

// Capture runs one capture per request. slots bounds how many browsers run at once;
// requests wait for a slot until the client goes away.
func Capture(capturer capture.Capturer, archiver *archive.Archiver, slots *semaphore.Weighted, metrics CaptureMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			logger.Error(fmt.Sprintf("failed to read request body: %s", err))
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		var request CaptureRequest
		if err := json.Unmarshal(body, &request); err != nil {
			logger.Error(fmt.Sprintf("failed to unmarshal request: %s", err))
			http.Error(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}

		url, _, err := target.Normalize(request.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		strategy, err := capture.ParseStrategy(request.Strategy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		waitUntil, err := render.ParseWaitCondition(request.WaitUntil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := slots.Acquire(r.Context(), 1); err != nil {
			logger.Debug("client closed connection while waiting for a capture slot")
			return
		}
		defer slots.Release(1)

		now := time.Now()
		result, err := capturer.Capture(r.Context(), capture.Request{
			URL:       url,
			Strategy:  strategy,
			WaitUntil: waitUntil,
			WaitFor:   request.WaitFor,
		})
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.Duration.Record(r.Context(), time.Since(now).Microseconds(), metric.WithAttributes(
			attribute.Key("strategy").String(string(strategy)),
			attribute.Key("status").String(status),
		))
		if err != nil {
			logger.Error(fmt.Sprintf("failed to capture %s: %s", url, err))
			http.Error(w, err.Error(), captureErrorStatus(err))
			return
		}
		metrics.Segments.Record(r.Context(), int64(len(result.Segments)), metric.WithAttributes(
			attribute.Key("mode").String(string(result.Mode)),
		))

		entry, err := archiver.Save(r.Context(), result)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to save capture: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		logger.Info("saved", "url", url, "imageURL", entry.ImageURL, "mode", result.Mode)

		b, err := json.Marshal(CaptureResponse{
			ImageURL:    entry.ImageURL,
			ManifestURL: entry.ManifestURL,
			URL:         result.URL,
			Strategy:    result.Strategy,
			Mode:        result.Mode,
			Width:       result.Width,
			Height:      result.Height,
			Segments:    result.Segments,
		})
		if err != nil {
			logger.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func captureErrorStatus(err error) int {
	var navigationError *render.NavigationError
	var selectorError *render.SelectorTimeoutError
	switch {
	case errors.As(err, &navigationError):
		return http.StatusBadGateway
	case errors.As(err, &selectorError):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
