package httpx

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StatusError is returned by Get when the server answers with a 4xx or 5xx
// status. The response is returned alongside it.
type StatusError struct {
	URL        string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP Error %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP Error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}
