package invoicing

import (
	"errors"
	"fmt"
)

// TransientError marks a gateway failure worth retrying: network errors,
// timeouts, 429 and 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient gateway error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// RejectedError is a 4xx answer: the gateway understood the request and
// refused it, so retrying cannot help.
type RejectedError struct {
	StatusCode int
	Detail     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected request (status %d): %s", e.StatusCode, e.Detail)
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsRejected reports whether err is a permanent refusal.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}
