package osu

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError is a failed call to the upstream API. Network errors have a
// zero Status.
type FetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying the call may succeed.
func (e *FetchError) Transient() bool {
	return e.Status == 0 ||
		e.Status == http.StatusUnauthorized ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient()
}
