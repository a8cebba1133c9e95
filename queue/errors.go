package queue

import "errors"

// ErrQueueUnavailable is returned when a named queue cannot be created,
// attached, or used because it has been reset.
var ErrQueueUnavailable = errors.New("queue unavailable")

// ErrQueueInUse is returned when the requested role on a named queue is
// already owned by another handle.
var ErrQueueInUse = errors.New("queue in use")

// ErrTimeout is returned when a push or pop does not complete within its
// timeout.
var ErrTimeout = errors.New("timeout")

// ErrEmpty is returned by a non-blocking pop on a queue that holds no frame.
var ErrEmpty = errors.New("queue empty")
