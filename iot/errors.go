package iot

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrAuthentication marks invalid or expired credentials. Never retried:
// repeating a request with the same bad credentials can't succeed.
var ErrAuthentication = errors.New("authentication failure")

// ErrRateLimited marks a remote throttling response. Absorbed by the
// client's retry loop; only surfaced when retries are exhausted.
var ErrRateLimited = errors.New("rate limited by remote registry")

// StatusError is a non-retryable remote error response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote registry returned status %d: %s", e.Code, e.Body)
}

// transientError wraps failures worth retrying: network-level errors,
// 5xx responses and throttling.
type transientError struct {
	err error
	// retryAfter is a server-supplied backoff hint, zero when absent.
	retryAfter time.Duration
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

func (e *transientError) Cause() error {
	return e.err
}
