package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey signals a key component that does not fit its fixed width.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidRange signals a malformed suffix range.
	ErrInvalidRange = errors.New("invalid suffix range")
	// ErrTransport signals a lookup that failed at the transport level after all retries.
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedStatus signals a non-2xx upstream response.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	// ErrNonMonotone signals a validity predicate that is not monotone over a range.
	ErrNonMonotone = errors.New("validity is not monotone")
	// ErrPoolClosed signals an acquire on a closed fetch pool.
	ErrPoolClosed = errors.New("fetch pool closed")
)

// NonMonotoneError reports the first suffix that breaks the monotone validity shape.
type NonMonotoneError struct {
	Prefix int
	Suffix int
	Bound  int
	Valid  bool
}

func (e *NonMonotoneError) Error() string {
	side := "above"
	if e.Suffix <= e.Bound {
		side = "at or below"
	}
	return fmt.Sprintf("%s: prefix %d suffix %d (%s bound %d) has valid=%t",
		ErrNonMonotone.Error(), e.Prefix, e.Suffix, side, e.Bound, e.Valid)
}

func (e *NonMonotoneError) Unwrap() error { return ErrNonMonotone }

// StatusError wraps ErrUnexpectedStatus with the HTTP status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus.Error(), e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
