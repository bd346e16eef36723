package source

import (
	"errors"
	"fmt"
)

// ErrInvalidLocator is returned when a locator cannot be resolved to a
// downloadable resource. It is always returned before any network access.
var ErrInvalidLocator = errors.New("invalid source locator")

// ErrTooLarge is wrapped by FetchError when a download exceeds the size cap.
var ErrTooLarge = errors.New("source exceeds maximum size")

// ErrUnavailable is wrapped by FetchError when no fetcher serves a locator's
// scheme.
var ErrUnavailable = errors.New("source type is not configured")

// FetchError reports a failed download. StatusCode is the remote HTTP status
// when one was received, zero otherwise.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("unexpected status %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on another attempt.
func (e *FetchError) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, ErrTooLarge)
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func invalidLocator(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidLocator, fmt.Sprintf(format, args...))
}
