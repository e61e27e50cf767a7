package render

import (
	"fmt"
	"time"
)

// NavigationError reports a page that did not reach its load condition in time.
type NavigationError struct {
	URL       string
	WaitUntil WaitCondition
	Timeout   time.Duration
	Err       error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to navigate to %s (wait until %s, timeout %s): %v", e.URL, e.WaitUntil, e.Timeout, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// SelectorTimeoutError reports an element that never appeared.
type SelectorTimeoutError struct {
	Selector string
	Timeout  time.Duration
	Err      error
}

func (e *SelectorTimeoutError) Error() string {
	return fmt.Sprintf("selector %q did not appear within %s: %v", e.Selector, e.Timeout, e.Err)
}

func (e *SelectorTimeoutError) Unwrap() error {
	return e.Err
}
