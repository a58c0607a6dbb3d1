package optimize

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestErrorCategoryRetryable(t *testing.T) {
	retryable := []ErrorCategory{ErrorNetwork, ErrorAuthentication, ErrorRateLimit, ErrorServer}
	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("%s should be retryable", c)
		}
	}
	terminal := []ErrorCategory{ErrorTimeout, ErrorClient, ErrorUnknown}
	for _, c := range terminal {
		if c.Retryable() {
			t.Errorf("%s should not be retryable", c)
		}
	}
}

func TestCategorizeStatus(t *testing.T) {
	cases := map[int]ErrorCategory{
		401: ErrorAuthentication,
		403: ErrorAuthentication,
		408: ErrorTimeout,
		429: ErrorRateLimit,
		404: ErrorClient,
		422: ErrorClient,
		500: ErrorServer,
		503: ErrorServer,
		200: ErrorUnknown,
	}
	for code, want := range cases {
		if got := categorizeStatus(code); got != want {
			t.Errorf("status %d categorized as %s, want %s", code, got, want)
		}
	}
}

func TestCategorizeTransportErrors(t *testing.T) {
	if got := Categorize(context.DeadlineExceeded); got != ErrorTimeout {
		t.Errorf("deadline exceeded categorized as %s", got)
	}
	if got := Categorize(&fakeNetError{timeout: true}); got != ErrorTimeout {
		t.Errorf("net timeout categorized as %s", got)
	}
	if got := Categorize(&fakeNetError{}); got != ErrorNetwork {
		t.Errorf("net failure categorized as %s", got)
	}
	if got := Categorize(errors.New("something odd")); got != ErrorUnknown {
		t.Errorf("plain error categorized as %s", got)
	}
}

func TestCategorizePreservesWrappedCategory(t *testing.T) {
	inner := &BackendError{Category: ErrorRateLimit, Err: errors.New("429 too many requests")}
	wrapped := fmt.Errorf("compilation attempt: %w", inner)
	if got := Categorize(wrapped); got != ErrorRateLimit {
		t.Errorf("wrapped backend error categorized as %s", got)
	}
	if !IsRetryable(wrapped) {
		t.Error("rate-limit failure should be retryable")
	}
	if !errors.Is(wrapped, inner.Err) {
		t.Error("backend error should unwrap to its cause")
	}
}
