// Package callback reports finished captures to an HTTP endpoint.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"

	"snapshot-stitcher/internal/retry"
)

// PerTryTimeout bounds a single callback attempt.
const PerTryTimeout = 5 * time.Second

type Notifier struct {
	URL    string
	Client *http.Client
}

type Options struct {
	// RetryOn defaults to retry.NewDefaultRetryOn.
	RetryOn *retry.On
	Log     logr.Logger
}

// NewNotifier sends through a retrying client whose overall timeout covers three
// retries of PerTryTimeout each plus the backoff between them.
func NewNotifier(url string, o Options) *Notifier {
	retryOn := o.RetryOn
	if retryOn == nil {
		retryOn = retry.NewDefaultRetryOn()
	}
	backoff := retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil)
	return &Notifier{
		URL: url,
		Client: &http.Client{
			Timeout: retry.Timeout(PerTryTimeout, backoff),
			Transport: &retry.Transport{
				Base:          http.DefaultTransport,
				RetryStrategy: backoff,
				RetryOn:       retryOn,
				PerTryTimeout: PerTryTimeout,
				OnRetry:       retry.LogRetries(o.Log.WithName("callback")),
			},
		},
	}
}

// Notify PATCHes payload as JSON to the callback URL.
func (n *Notifier) Notify(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("failed to marshal callback payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, n.URL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= 400 {
		return xerrors.Errorf("callback %s responded %s", n.URL, response.Status)
	}
	return nil
}
