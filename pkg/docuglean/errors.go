package docuglean

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks input rejected before any backend call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedPayload marks backend output that could not be decoded.
	ErrMalformedPayload = errors.New("malformed backend payload")
)

func invalidArgument(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(msg, args...))
}

// BackendError reports a failed chunk classification.
type BackendError struct {
	Backend Backend
	Range   PageRange
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("classification failed on %s for pages %s: %v", e.Backend, e.Range, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
