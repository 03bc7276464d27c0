package utilz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidArgument is wrapped by every configuration error returned
	// from a wrapper constructor.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPanic is the cause recorded when a wrapped function panics.
	ErrPanic = errors.New("panic in wrapped function")
)

// Error provides context about a wrapped function failure.
// It records where the failure happened, what input was being processed,
// and whether the failure was due to a timeout or cancellation.
type Error[In any] struct {
	Timestamp time.Time
	InputData In
	Err       error
	Path      []Name
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface.
func (e *Error[In]) Error() string {
	path := strings.Join(e.Path, " -> ")
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s timed out: %v", path, e.Err)
	case e.Canceled:
		return fmt.Sprintf("%s canceled: %v", path, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", path, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *Error[In]) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the error was caused by a timeout.
func (e *Error[In]) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the error was caused by cancellation.
func (e *Error[In]) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// wrapError prepends name to the path of an existing *Error[In], or wraps a
// plain error in a new one.
func wrapError[In any](err error, name Name, in In) error {
	var wrapErr *Error[In]
	if errors.As(err, &wrapErr) {
		wrapErr.Path = append([]Name{name}, wrapErr.Path...)
		return wrapErr
	}
	return &Error[In]{
		Timestamp: time.Now(),
		InputData: in,
		Err:       err,
		Path:      []Name{name},
	}
}

// contextError builds an *Error[In] for a context that ended before the
// wrapped call finished.
func contextError[In any](err error, name Name, in In) *Error[In] {
	return &Error[In]{
		Timestamp: time.Now(),
		InputData: in,
		Err:       err,
		Path:      []Name{name},
		Timeout:   errors.Is(err, context.DeadlineExceeded),
		Canceled:  errors.Is(err, context.Canceled),
	}
}

// invalidArgument formats a configuration error that wraps ErrInvalidArgument.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// recoverFromPanic converts a panic in a deferred scope into an *Error[In].
func recoverFromPanic[In, Out any](result *Out, err *error, name Name, in In) {
	if r := recover(); r != nil {
		var zero Out
		*result = zero
		*err = &Error[In]{
			Timestamp: time.Now(),
			InputData: in,
			Err:       fmt.Errorf("%w: %v", ErrPanic, r),
			Path:      []Name{name},
		}
	}
}

// causeOf strips the wrapper path from err and returns the original cause.
func causeOf[In any](err error) error {
	var wrapErr *Error[In]
	if errors.As(err, &wrapErr) {
		return wrapErr.Err
	}
	return err
}
