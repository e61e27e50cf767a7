package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// ErrAttemptTimeout marks an attempt that ran past Transport.PerTryTimeout while the
// request context was still live.
var ErrAttemptTimeout = errors.New("attempt timed out")

type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
	// PerTryTimeout bounds each attempt, including reading its response body.
	// Zero leaves attempts bounded only by the request context.
	PerTryTimeout time.Duration
	// OnRetry is called before each retry with the attempt about to be made.
	OnRetry func(request *http.Request, retryCount uint, response *http.Response, err error)
}

// NewClient returns a client that tries maxRetryCount+1 times, perTry each, and whose
// Timeout leaves room for all of them.
func NewClient(perTry time.Duration, maxRetryCount uint) *http.Client {
	backoff := NewExponentialBackOff(100*time.Millisecond, 5*time.Second, maxRetryCount, nil)
	return &http.Client{
		Timeout: Timeout(perTry, backoff),
		Transport: &Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: backoff,
			RetryOn:       NewDefaultRetryOn(),
			PerTryTimeout: perTry,
		},
	}
}

// LogRetries returns an OnRetry hook that reports each retry on log.
func LogRetries(log logr.Logger) func(*http.Request, uint, *http.Response, error) {
	return func(request *http.Request, retryCount uint, response *http.Response, err error) {
		values := []any{"method", request.Method, "url", request.URL.Redacted(), "attempt", retryCount + 1}
		if response != nil {
			values = append(values, "status", response.StatusCode)
		}
		if err != nil {
			values = append(values, "error", err.Error())
		}
		log.Info("retrying request", values...)
	}
}

type contextKey string

const retryCountContextKey contextKey = "retryCountKey"

func getRetryCount(ctx context.Context) uint {
	v := ctx.Value(retryCountContextKey)

	i, ok := v.(uint)
	if !ok {
		return 0
	}

	return i
}

func setRetryCount(ctx context.Context, retryCount uint) context.Context {
	return context.WithValue(ctx, retryCountContextKey, retryCount)
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retryCount := getRetryCount(request.Context())
	sleep, exceeded := t.retryStrategy().Sleep(retryCount)

	response, err := t.attempt(request)
	if err != nil {
		if !exceeded && t.RetryOn != nil && t.RetryOn.CheckError(err) {
			return t.retry(request, retryCount, sleep, nil, err)
		}
		return nil, err
	}
	if !exceeded && t.RetryOn != nil && t.RetryOn.CheckResponse(response) {
		return t.retry(request, retryCount, sleep, response, nil)
	}
	return response, nil
}

func (t *Transport) attempt(request *http.Request) (*http.Response, error) {
	if t.PerTryTimeout <= 0 {
		return t.base().RoundTrip(request)
	}

	ctx, cancel := context.WithTimeout(request.Context(), t.PerTryTimeout)
	response, err := t.base().RoundTrip(request.WithContext(ctx))
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && request.Context().Err() == nil {
			return nil, fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, t.PerTryTimeout, err)
		}
		return nil, err
	}
	if response.Body == nil {
		cancel()
		return response, nil
	}
	response.Body = &cancelOnClose{ReadCloser: response.Body, cancel: cancel}
	return response, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func (t *Transport) retry(request *http.Request, retryCount uint, sleep time.Duration, response *http.Response, err error) (*http.Response, error) {
	if request.Body != nil && request.Body != http.NoBody && request.GetBody == nil {
		// The body was consumed by the first attempt and cannot be replayed.
		if response != nil {
			return response, nil
		}
		return nil, err
	}

	if t.OnRetry != nil {
		t.OnRetry(request, retryCount+1, response, err)
	}
	if response != nil {
		_, _ = io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}

	timer := time.NewTimer(sleep)
	select {
	case <-request.Context().Done():
		timer.Stop()
		return nil, request.Context().Err()
	case <-timer.C:
	}

	next := request.Clone(setRetryCount(request.Context(), retryCount+1))
	if request.GetBody != nil {
		body, err := request.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		next.Body = body
	}
	return t.RoundTrip(next)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}

func (t *Transport) CancelRequest(request *http.Request) {
	type canceler interface {
		CancelRequest(*http.Request)
	}
	if cr, ok := t.base().(canceler); ok {
		cr.CancelRequest(request)
	}
}
