package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// HTTPError represents an HTTP status error from an AI backend.
type HTTPError struct {
	StatusCode int
	Body       string
	Backend    Backend
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Backend, e.Body)
}

// Result labels used for metrics.
const (
	ResultOK          = "ok"
	ResultRateLimited = "rate_limited"
	ResultTransient   = "transient"
	ResultFatal       = "fatal"
	ResultCanceled    = "canceled"
	ResultUnknown     = "unknown"
)

// Classify maps an error from a backend call onto a result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	case IsRateLimited(err):
		return ResultRateLimited
	case isTransient(err):
		return ResultTransient
	case isFatal(err):
		return ResultFatal
	}
	return ResultUnknown
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "eof")
}

func isFatal(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrUnsupported) || IsContentRefused(err) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "invalid request") ||
		strings.Contains(errStr, "bad request")
}

// statusError turns a non-2xx status into an error, mapping 429 to ErrRateLimited.
func statusError(b Backend, code int, body string) error {
	if len(body) > 512 {
		body = body[:512]
	}
	herr := &HTTPError{StatusCode: code, Body: body, Backend: b}
	if code == 429 {
		return fmt.Errorf("%w: %v", ErrRateLimited, herr)
	}
	return herr
}
