package txrx

import (
	"errors"
	"fmt"
)

// ErrAlreadyBound is returned when binding an endpoint that has already
// carried traffic.
var ErrAlreadyBound = errors.New("endpoint already bound")

// ErrNotBound is returned when an operation runs on a deferred endpoint that
// has not been bound to queues yet.
var ErrNotBound = errors.New("endpoint not bound")

// ErrEndpointClosed is returned when an operation runs on a closed endpoint.
var ErrEndpointClosed = errors.New("endpoint closed")

// ErrProtocolMismatch is returned when the peer answers a read with a
// response of unexpected shape.
var ErrProtocolMismatch = errors.New("protocol mismatch")

// ProtocolMismatchErr reports a response that does not fit its request.
type ProtocolMismatchErr struct {
	Reason string
	Want   int
	Got    int
}

func (e ProtocolMismatchErr) Error() string {
	return fmt.Sprintf("protocol mismatch: %s (want %d, got %d)",
		e.Reason, e.Want, e.Got)
}

// Is lets errors.Is match against ErrProtocolMismatch.
func (e ProtocolMismatchErr) Is(target error) bool {
	return target == ErrProtocolMismatch
}
