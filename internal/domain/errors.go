package domain

import "errors"

var (
	// ErrInvariantViolation signals a caller precondition bug, such as an
	// unsorted pending queue. It is never corrected silently.
	ErrInvariantViolation = errors.New("queue invariant violated")

	// ErrUnknownItem indicates an event referenced an item that is not in
	// the queue it was expected in.
	ErrUnknownItem = errors.New("unknown item")
)
