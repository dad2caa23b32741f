package errors

import (
	"context"
	stderrors "errors"
)

// CheckContext returns an error if the context is canceled or timed out.
// This provides a standardized way to check and wrap context errors.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}

// Code extracts the error code from an error, walking the wrap chain.
// Returns Unknown for nil errors and errors created outside this package.
func Code(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code()
	}
	return Unknown
}

// IsRetryable reports whether the error is transient and worth retrying
// with backoff.
func IsRetryable(err error) bool {
	switch Code(err) {
	case RateLimited, Timeout:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error must abort the whole run.
func IsFatal(err error) bool {
	return Code(err) == Fatal
}
