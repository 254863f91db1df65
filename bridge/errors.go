package bridge

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Allocate when no slot is idle. The table never
// grows and never blocks; callers decide whether to retry after a yield.
var ErrQueueFull = errors.New("bridge: request queue full")

// ErrTimeout is returned by a bounded wait when the deadline elapses before
// the host reports a terminal status. The slot is not freed.
var ErrTimeout = errors.New("bridge: wait timed out")

// ErrInvalidHandle is returned when an id or peripheral handle does not refer
// to a live entry. A zero id and a stale id are treated identically.
var ErrInvalidHandle = errors.New("bridge: invalid or stale handle")

// ErrPayloadOverflow is returned when a request or response payload does not
// fit the bounded wire payload.
var ErrPayloadOverflow = errors.New("bridge: payload exceeds bounded size")

// A HostError carries the raw error code reported by the host completer for
// a request that terminated in the Error status.
type HostError struct {
	Code int32
}

func (e *HostError) Error() string {
	return fmt.Sprintf("bridge: host reported error code %d", e.Code)
}

// AsHostError extracts a HostError from an error chain.
func AsHostError(err error) (*HostError, bool) {
	var he *HostError
	ok := errors.As(err, &he)
	return he, ok
}
