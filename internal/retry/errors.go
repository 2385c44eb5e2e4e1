package retry

import (
	"errors"
	"fmt"
)

// RetryableError marks a transient failure that is worth another attempt:
// network errors, timeouts, transient HTTP statuses, or the site bouncing
// the session to its home page.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that another attempt cannot fix, usually a
// page whose structure no longer matches what the parser expects.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// ExhaustedError is returned once every attempt failed with a retryable
// error. Err is the last of those errors.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError. A nil err stays nil and an
// already classified error is returned unchanged.
func Retryable(err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &RetryableError{Err: err}
}

// Fatal wraps err as a FatalError. A nil err stays nil and an already
// classified error is returned unchanged.
func Fatal(err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &FatalError{Err: err}
}

// Fatalf is shorthand for Fatal(fmt.Errorf(format, args...)).
func Fatalf(format string, args ...any) error {
	return Fatal(fmt.Errorf(format, args...))
}

// IsRetryable reports whether err, or an error it wraps, is retryable.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// IsFatal reports whether err, or an error it wraps, is fatal.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Attempts returns the attempt count carried by an ExhaustedError, or 0.
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}

func classified(err error) bool {
	return IsRetryable(err) || IsFatal(err)
}
