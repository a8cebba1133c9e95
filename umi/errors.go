package umi

import (
	"errors"
	"fmt"
)

// ErrInvalidLength is returned when a payload length is zero, exceeds
// MaxPayloadBytes, or is not a supported scalar width on the scalar path.
var ErrInvalidLength = errors.New("invalid length")

// ErrMalformedPacket is returned when a frame cannot be parsed as a packet.
var ErrMalformedPacket = errors.New("malformed packet")

// InvalidLengthErr reports a payload length that the protocol cannot carry.
type InvalidLengthErr struct {
	Length int
}

func (e InvalidLengthErr) Error() string {
	return fmt.Sprintf("invalid length %d, must be in [1, %d]",
		e.Length, MaxPayloadBytes)
}

// Is lets errors.Is match against ErrInvalidLength.
func (e InvalidLengthErr) Is(target error) bool {
	return target == ErrInvalidLength
}

// MalformedPacketErr reports a frame that does not parse as a packet.
type MalformedPacketErr struct {
	Reason string
	Got    int
}

func (e MalformedPacketErr) Error() string {
	return fmt.Sprintf("malformed packet: %s (got %d)", e.Reason, e.Got)
}

// Is lets errors.Is match against ErrMalformedPacket.
func (e MalformedPacketErr) Is(target error) bool {
	return target == ErrMalformedPacket
}
