// Package errors classifies infrastructure failures as transient or
// permanent so callers can decide whether a retry is worthwhile.
package errors

import "errors"

// TransientError marks a failure that may succeed on retry (network
// timeouts, rate limits, upstream 5xx).
type TransientError struct {
	msg   string
	cause error
}

// NewTransientError wraps cause as a retryable failure.
func NewTransientError(msg string, cause error) *TransientError {
	return &TransientError{msg: msg, cause: cause}
}

func (e *TransientError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *TransientError) Unwrap() error { return e.cause }

// PermanentError marks a failure that will not succeed on retry
// (authentication, missing channel, malformed request).
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanentError wraps cause as a non-retryable failure.
func NewPermanentError(msg string, cause error) *PermanentError {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error { return e.cause }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
